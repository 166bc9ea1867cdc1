package oracle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clientFunc adapts a function to the Client interface for tests.
type clientFunc func(ctx context.Context, prompt string, opts Options) (string, error)

func (f clientFunc) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return f(ctx, prompt, opts)
}

func TestError(t *testing.T) {
	t.Run("wraps underlying error", func(t *testing.T) {
		inner := errors.New("connection refused")
		err := &Error{Kind: KindNetwork, Err: inner}
		assert.ErrorIs(t, err, inner)
		assert.Contains(t, err.Error(), "network")
	})

	t.Run("usable without cause", func(t *testing.T) {
		err := &Error{Kind: KindQuota}
		assert.Contains(t, err.Error(), "quota")
	})

	t.Run("detectable through wrapping", func(t *testing.T) {
		err := fmt.Errorf("research call: %w", &Error{Kind: KindTimeout})
		var oerr *Error
		require.ErrorAs(t, err, &oerr)
		assert.Equal(t, KindTimeout, oerr.Kind)
	})
}

func TestClassifyErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"quota message", errors.New("googleapi: Error 429: quota exceeded"), KindQuota},
		{"resource exhausted", errors.New("rpc error: code = RESOURCE_EXHAUSTED"), KindQuota},
		{"deadline", errors.New("context deadline exceeded"), KindTimeout},
		{"plain network", errors.New("dial tcp: connection refused"), KindNetwork},
		{"raw deadline sentinel", context.DeadlineExceeded, KindTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyErr(tt.err))
		})
	}
}

func TestWithTimeout(t *testing.T) {
	t.Run("fast call passes through", func(t *testing.T) {
		client := WithTimeout(clientFunc(func(ctx context.Context, prompt string, opts Options) (string, error) {
			return "ok", nil
		}), time.Second)

		text, err := client.Generate(context.Background(), "p", Options{})
		require.NoError(t, err)
		assert.Equal(t, "ok", text)
	})

	t.Run("slow call becomes timeout error", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		client := WithTimeout(clientFunc(func(ctx context.Context, prompt string, opts Options) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-release:
				return "too late", nil
			}
		}), 10*time.Millisecond)

		_, err := client.Generate(context.Background(), "p", Options{})
		var oerr *Error
		require.ErrorAs(t, err, &oerr)
		assert.Equal(t, KindTimeout, oerr.Kind)
	})

	t.Run("non-positive timeout is a no-op wrapper", func(t *testing.T) {
		inner := clientFunc(func(ctx context.Context, prompt string, opts Options) (string, error) {
			return "x", nil
		})
		assert.NotNil(t, WithTimeout(inner, 0))
		text, err := WithTimeout(inner, 0).Generate(context.Background(), "p", Options{})
		require.NoError(t, err)
		assert.Equal(t, "x", text)
	})

	t.Run("inner errors survive when deadline not hit", func(t *testing.T) {
		inner := clientFunc(func(ctx context.Context, prompt string, opts Options) (string, error) {
			return "", &Error{Kind: KindQuota}
		})
		_, err := WithTimeout(inner, time.Second).Generate(context.Background(), "p", Options{})
		var oerr *Error
		require.ErrorAs(t, err, &oerr)
		assert.Equal(t, KindQuota, oerr.Kind)
	})
}
