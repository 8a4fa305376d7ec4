package bybit

import (
	"context"
	"math"
	"math/rand"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"go.uber.org/zap"

	"github.com/earthskyorg/bybit-trading-bot/internal/monitoring"
)

// retryPolicy controls backoff for transient venue errors.
type retryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Factor:       2.0,
	}
}

// call runs one REST request with the rate limiter, retry policy and
// request metrics applied. fn must return the raw SDK response; call
// checks the retCode and hands back the decoded ServerResponse.
// Transient failures are retried with exponential backoff and jitter;
// credential failures and order verdicts return immediately.
func (c *Client) call(ctx context.Context, endpoint string, fn func() (interface{}, error)) (*bybit_api.ServerResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		start := time.Now()
		raw, err := fn()
		monitoring.ObserveExchangeRequest(endpoint, time.Since(start))

		if err == nil {
			resp, ok := raw.(*bybit_api.ServerResponse)
			if !ok {
				return nil, NewBybitError(0, "unexpected response shape")
			}
			if apiErr := apiError(resp.RetCode, resp.RetMsg); apiErr != nil {
				err = apiErr
			} else {
				return resp, nil
			}
		}

		lastErr = err
		if attempt == c.retry.MaxRetries || !isTransient(err) {
			break
		}

		delay := backoffDelay(c.retry, attempt)
		c.log.Warn("retrying request",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// backoffDelay returns the wait before retry number attempt+1, with
// +/-10% jitter so parallel loops do not retry in lockstep.
func backoffDelay(p retryPolicy, attempt int) time.Duration {
	delay := time.Duration(float64(p.InitialDelay) * math.Pow(p.Factor, float64(attempt)))
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	jitter := time.Duration((rand.Float64()*2 - 1) * 0.1 * float64(delay))
	return delay + jitter
}
