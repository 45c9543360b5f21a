package controller

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Commander issues fire-and-forget commands. A nil error means the
// controller accepted the request; the effect arrives later as events.
type Commander interface {
	InsertCredit(ctx context.Context, amount int) error
	SelectProduct(ctx context.Context, code string) error
	WithdrawCredit(ctx context.Context) error
}

// InsertCredit reports a coin of the given value.
func (c *Client) InsertCredit(ctx context.Context, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("insert credit %d: %w", amount, ErrInvalidAmount)
	}
	return c.send(ctx, "credit", "credit", strconv.Itoa(amount))
}

// SelectProduct asks for the product in the given slot.
func (c *Client) SelectProduct(ctx context.Context, code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("select product: %w", ErrInvalidCode)
	}
	return c.send(ctx, "select", "select", code)
}

// WithdrawCredit asks the machine to return the remaining credit.
func (c *Client) WithdrawCredit(ctx context.Context) error {
	return c.send(ctx, "withdrawn", "withdrawn")
}

func (c *Client) send(ctx context.Context, name string, segments ...string) (err error) {
	ctx, span := c.startSpan(ctx, name)
	defer func() { endSpan(span, err) }()

	// [THROTTLING] key repeat must not flood the controller
	if err = c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limit: %w", name, err)
	}

	target := c.Endpoint(segments...)
	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.get(ctx, target, nil)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
