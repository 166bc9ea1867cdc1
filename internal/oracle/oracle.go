// Package oracle adapts external text-generation services behind a single
// request/response interface. The rest of the pipeline treats the oracle as
// an opaque, possibly-slow, possibly-failing black box: every caller catches
// the error locally and substitutes a safe default.
package oracle

import (
	"context"
	"fmt"
)

// Options control a single generation call.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Client is the generation oracle contract. Implementations must be safe for
// use from a single goroutine at a time; the pipeline never issues concurrent
// calls through one client.
type Client interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// Kind classifies oracle failures.
type Kind string

const (
	KindNetwork   Kind = "network"
	KindQuota     Kind = "quota"
	KindMalformed Kind = "malformed"
	KindTimeout   Kind = "timeout"
)

// Error is returned by Client implementations for any generation failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("oracle %s error", e.Kind)
	}
	return fmt.Sprintf("oracle %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
