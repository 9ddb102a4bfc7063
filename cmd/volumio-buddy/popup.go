package main

import (
	"errors"
	"fmt"
	"regexp"
)

// LabelProvider yields the content of a rotating popup: one line or two.
type LabelProvider interface {
	Label() []string
}

// LabelFunc adapts a plain function to LabelProvider.
type LabelFunc func() []string

func (f LabelFunc) Label() []string { return f() }

// InvalidLabelError reports a label that is neither one nor two lines.
type InvalidLabelError struct {
	Lines int
}

func (e *InvalidLabelError) Error() string {
	return fmt.Sprintf("popup label must have 1 or 2 lines, got %d", e.Lines)
}

// LabelArgsMismatchError reports a placeholder count that differs from the
// number of supplied arguments.
type LabelArgsMismatchError struct {
	Placeholders int
	Args         int
}

func (e *LabelArgsMismatchError) Error() string {
	return fmt.Sprintf("popup label has %d placeholders but %d arguments", e.Placeholders, e.Args)
}

// ErrInvalidPopupArg is returned for an argument that is neither a literal
// nor a provider function.
var ErrInvalidPopupArg = errors.New("popup argument must be a literal or a provider")

var placeholderRe = regexp.MustCompile(`\{.*?\}`)

type popupArgKind int

const (
	argInvalid popupArgKind = iota
	argLiteral
	argProvider
)

// PopupArg fills one placeholder of a Popup label.
type PopupArg struct {
	kind     popupArgKind
	literal  string
	provider func() string
}

// Literal is a fixed placeholder value.
func Literal(s string) PopupArg {
	return PopupArg{kind: argLiteral, literal: s}
}

// Provider is evaluated every time the popup is shown.
func Provider(fn func() string) PopupArg {
	if fn == nil {
		return PopupArg{}
	}
	return PopupArg{kind: argProvider, provider: fn}
}

func (a PopupArg) value() string {
	if a.kind == argProvider {
		return a.provider()
	}
	return a.literal
}

// Popup is a parameterized label template. Placeholders are `{...}` and are
// filled left to right across both lines.
type Popup struct {
	lines []string
	args  []PopupArg
}

// NewPopup validates the template against its arguments.
func NewPopup(lines []string, args ...PopupArg) (*Popup, error) {
	if len(lines) != 1 && len(lines) != 2 {
		return nil, &InvalidLabelError{Lines: len(lines)}
	}

	total := 0
	for _, l := range lines {
		total += len(placeholderRe.FindAllStringIndex(l, -1))
	}
	if total != len(args) {
		return nil, &LabelArgsMismatchError{Placeholders: total, Args: len(args)}
	}
	for i, a := range args {
		if a.kind == argInvalid {
			return nil, fmt.Errorf("argument %d: %w", i, ErrInvalidPopupArg)
		}
	}

	return &Popup{
		lines: append([]string(nil), lines...),
		args:  append([]PopupArg(nil), args...),
	}, nil
}

// Label renders the template, invoking providers now.
func (p *Popup) Label() []string {
	out := make([]string, len(p.lines))
	next := 0
	for i, l := range p.lines {
		out[i] = placeholderRe.ReplaceAllStringFunc(l, func(string) string {
			v := p.args[next].value()
			next++
			return v
		})
	}
	return out
}

// modalForLabel maps provider output onto a modal variant.
func modalForLabel(lines []string) (Modal, error) {
	switch len(lines) {
	case 1:
		return TextModal(lines[0]), nil
	case 2:
		return TwoLineModal(lines[0], lines[1]), nil
	default:
		return Modal{}, &InvalidLabelError{Lines: len(lines)}
	}
}
