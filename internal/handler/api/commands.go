package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vending/vending-gui/internal/adapter/controller"
)

// CommandHandler relays commands to the controller for renderers that do
// not talk to it themselves.
type CommandHandler struct {
	logger   *slog.Logger
	commands controller.Commander
	timeout  time.Duration
}

func NewCommandHandler(logger *slog.Logger, commands controller.Commander) *CommandHandler {
	return &CommandHandler{
		logger:   logger,
		commands: commands,
		timeout:  10 * time.Second,
	}
}

func (h *CommandHandler) InsertCredit(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.Atoi(chi.URLParam(r, "amount"))
	if err != nil {
		writeError(w, r, h.logger, http.StatusBadRequest, fmt.Errorf("amount: %w", controller.ErrInvalidAmount))
		return
	}

	h.relay(w, r, func(ctx context.Context) error {
		return h.commands.InsertCredit(ctx, amount)
	})
}

func (h *CommandHandler) SelectProduct(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	h.relay(w, r, func(ctx context.Context) error {
		return h.commands.SelectProduct(ctx, code)
	})
}

func (h *CommandHandler) WithdrawCredit(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, h.commands.WithdrawCredit)
}

func (h *CommandHandler) relay(w http.ResponseWriter, r *http.Request, call func(context.Context) error) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	err := call(ctx)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, controller.ErrInvalidAmount), errors.Is(err, controller.ErrInvalidCode):
		writeError(w, r, h.logger, http.StatusBadRequest, err)
	default:
		writeError(w, r, h.logger, http.StatusBadGateway, err)
	}
}
