package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tldr/internal/apperr"
)

// run drives one generation. Rate limited attempts are retried with
// exponential backoff, but only while nothing has reached onChunk yet.
func (c *Client) run(ctx context.Context, req *request, onChunk func(string)) (string, error) {
	source := string(c.name)

	for attempt := 0; ; attempt++ {
		if err := apperr.CheckAborted(ctx); err != nil {
			return "", err
		}

		var (
			text    strings.Builder
			started bool
		)

		err := c.backend.stream(ctx, req, func(chunk string) {
			if chunk == "" {
				return
			}
			started = true
			text.WriteString(chunk)
			if onChunk != nil {
				onChunk(chunk)
			}
		})
		if err == nil {
			return text.String(), nil
		}

		if ctx.Err() != nil {
			return "", apperr.Aborted(ctx.Err())
		}

		err = classifyError(source, err)
		if apperr.CodeOf(err) != apperr.CodeRateLimit || started {
			return "", err
		}
		if attempt+1 >= c.attempts {
			return "", apperr.Wrap(source, apperr.CodeRateLimit,
				fmt.Sprintf("rate limited after %d attempts", attempt+1), err)
		}

		delay := retryBaseDelay << attempt

		c.log.WarnContext(ctx, "Provider is rate limiting, retrying",
			"attempt", attempt+1,
			"delay", delay,
			"model", c.model)

		if err = c.sleep(ctx, delay); err != nil {
			return "", apperr.Aborted(err)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
