package oracle

import (
	"context"
	"time"
)

// timeoutClient bounds every generation call with a deadline so a hung
// oracle cannot stall the orchestrator loop indefinitely.
type timeoutClient struct {
	inner   Client
	timeout time.Duration
}

// WithTimeout wraps a client with a per-call timeout. Deadline expiry is
// reported as a timeout-kind oracle error, which callers already treat as
// any other oracle failure. A non-positive timeout returns the client
// unchanged.
func WithTimeout(c Client, timeout time.Duration) Client {
	if timeout <= 0 {
		return c
	}
	return &timeoutClient{inner: c, timeout: timeout}
}

func (c *timeoutClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type reply struct {
		text string
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		text, err := c.inner.Generate(ctx, prompt, opts)
		ch <- reply{text: text, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && ctx.Err() == context.DeadlineExceeded {
			return "", &Error{Kind: KindTimeout, Err: r.err}
		}
		return r.text, r.err
	case <-ctx.Done():
		return "", &Error{Kind: KindTimeout, Err: ctx.Err()}
	}
}
