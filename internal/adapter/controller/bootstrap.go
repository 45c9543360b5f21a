package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/vending/vending-gui/internal/domain/model"
)

// Fetcher obtains the full machine state once, at session start.
type Fetcher interface {
	FetchStatus(ctx context.Context) (*model.MachineState, error)
}

// FetchStatus performs exactly one status call. There is no retry; on
// failure the caller keeps whatever state it already has.
func (c *Client) FetchStatus(ctx context.Context) (_ *model.MachineState, err error) {
	ctx, span := c.startSpan(ctx, "status")
	defer func() { endSpan(span, err) }()

	var ms model.MachineState
	err = c.get(ctx, c.Endpoint("status"), func(body io.Reader) error {
		if err := json.NewDecoder(body).Decode(&ms); err != nil {
			return fmt.Errorf("decode status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch status of %s: %w", c.id, err)
	}

	ms = ms.Normalize()
	return &ms, nil
}
