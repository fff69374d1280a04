// Package diag collects the non-fatal conditions raised while loading a module.
package diag

import "fmt"

type Severity int

const (
	// SoftSkip means one piece or one extension file was left out of the load.
	SoftSkip Severity = iota
	// Warning means the load kept everything but something looked wrong.
	Warning
)

func (s Severity) String() string {
	switch s {
	case SoftSkip:
		return "skip"
	case Warning:
		return "warning"
	}
	return "unknown"
}

type Kind string

const (
	NoImages               Kind = "no-images"
	TooManyImageFields     Kind = "too-many-image-fields"
	UnpairedVariant        Kind = "unpaired-variant"
	OverrideMismatch       Kind = "override-mismatch"
	OverrideInvalid        Kind = "override-invalid"
	UnusedOverride         Kind = "unused-override"
	UnusedException        Kind = "unused-multiple-images-exception"
	ExceptionMismatch      Kind = "multiple-images-mismatch"
	UnexpectedMultiplicity Kind = "unexpected-multiple-images"
	DuplicateIdentifier    Kind = "duplicate-identifier"
	UnsupportedVersion     Kind = "unsupported-version"
	ExtensionSkipped       Kind = "extension-skipped"
)

type Diagnostic struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"-"`
	// Identifier is the piece id or the extension file the diagnostic is about.
	Identifier string `json:"identifier,omitempty"`
	Message    string `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Identifier == "" {
		return fmt.Sprintf("[%s] %s: %s", d.Severity, d.Kind, d.Message)
	}
	return fmt.Sprintf("[%s] %s (%s): %s", d.Severity, d.Kind, d.Identifier, d.Message)
}

// List is an ordered diagnostic collector. The zero value is ready to use.
// A nil *List discards everything added to it.
type List struct {
	items []Diagnostic
}

func (l *List) Add(kind Kind, sev Severity, id, format string, args ...any) {
	if l == nil {
		return
	}
	l.items = append(l.items, Diagnostic{
		Kind:       kind,
		Severity:   sev,
		Identifier: id,
		Message:    fmt.Sprintf(format, args...),
	})
}

func (l *List) Warnf(kind Kind, id, format string, args ...any) {
	l.Add(kind, Warning, id, format, args...)
}

func (l *List) Skipf(kind Kind, id, format string, args ...any) {
	l.Add(kind, SoftSkip, id, format, args...)
}

func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// Items returns a copy of the collected diagnostics in the order they were added.
func (l *List) Items() []Diagnostic {
	if l == nil {
		return nil
	}
	out := make([]Diagnostic, len(l.items))
	copy(out, l.items)
	return out
}

// Count returns how many diagnostics of the given kind mention id.
func (l *List) Count(kind Kind, id string) int {
	if l == nil {
		return 0
	}
	n := 0
	for _, d := range l.items {
		if d.Kind == kind && d.Identifier == id {
			n++
		}
	}
	return n
}
