// Package oracle wraps the text-completion service used for column mapping
// and category suggestions. Callers must treat a disabled or failing oracle
// as "no suggestion".
package oracle

import (
	"context"
	"errors"
)

// ErrDisabled is returned by Complete on an oracle that is switched off.
var ErrDisabled = errors.New("oracle disabled")

// Oracle is a capability-gated text-completion collaborator.
type Oracle interface {
	Enabled() bool
	Complete(ctx context.Context, prompt string) (string, error)
}

// Disabled is the oracle used when no completion backend is configured.
type Disabled struct{}

// Enabled implements Oracle.
func (Disabled) Enabled() bool { return false }

// Complete implements Oracle.
func (Disabled) Complete(context.Context, string) (string, error) { return "", ErrDisabled }

// Func adapts a function to the Oracle interface.
type Func func(ctx context.Context, prompt string) (string, error)

// Enabled implements Oracle.
func (f Func) Enabled() bool { return f != nil }

// Complete implements Oracle.
func (f Func) Complete(ctx context.Context, prompt string) (string, error) {
	if f == nil {
		return "", ErrDisabled
	}
	return f(ctx, prompt)
}

// IsEnabled reports whether o is non-nil and switched on.
func IsEnabled(o Oracle) bool {
	return o != nil && o.Enabled()
}

var (
	_ Oracle = Disabled{}
	_ Oracle = Func(nil)
	_ Oracle = (*Gemini)(nil)
)
