// Package arberr defines the single error family used across the
// opportunity-discovery and execution-construction pipeline. Errors in the
// trade/search hot path are values, wrapped with fmt.Errorf("%w", ...) in
// the same style as pkg/utils.Wrap; only invariant violations and factory
// failures panic.
package arberr

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers match on these with errors.Is; adapters and the
// search/worker layers wrap them with call-specific context.
var (
	ErrNoOpportunity      = errors.New("no profitable opportunity")
	ErrUnsupportedProto   = errors.New("unsupported dex protocol")
	ErrPoolMissing        = errors.New("pool object missing")
	ErrPoolDisabled       = errors.New("pool swap disabled")
	ErrInsufficientLiq    = errors.New("insufficient liquidity")
	ErrPathMismatch       = errors.New("path coin mismatch")
	ErrNoFlashVenue       = errors.New("no flash-loan venue for coin")
	ErrFlashNotRepaid     = errors.New("flash loan not repaid")
	ErrSimulationFailed   = errors.New("simulation reverted")
	ErrCacheEmpty         = errors.New("cache empty")
	ErrConfigInvalid      = errors.New("invalid configuration")
)

// Wrap adds context to err, following this codebase's ambient convention of
// thin "%s: %w" wrapping rather than a stack-trace-carrying error type. It
// returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
