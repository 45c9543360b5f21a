package service

import (
	"context"
	"log/slog"

	"github.com/vending/vending-gui/internal/domain/model"
)

// Journal logs every state transition a watcher sees. It returns when ctx
// is cancelled or the session closes.
func Journal(ctx context.Context, s Sessioner, logger *slog.Logger) {
	w := s.Watch()
	defer w.Close()

	var prev *model.UiState
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-w.Recv():
			if !ok {
				return
			}
			if prev != nil && equalState(*prev, st) {
				continue
			}
			prev = &st

			logger.Info("STATE_CHANGED",
				"message", st.Message,
				"credit", model.FormatAmount(st.Credit),
				"income", model.FormatAmount(st.Income),
				"products", len(st.Quantity),
				"owner_notice", st.OwnerNotice,
				"dropped", w.Dropped(),
			)
		}
	}
}

// equalState compares the fields a journal line shows. Slices are compared
// by identity; a new DisplayV1 always brings new slices.
func equalState(a, b model.UiState) bool {
	return a.Message == b.Message &&
		a.Credit == b.Credit &&
		a.Income == b.Income &&
		a.OwnerNotice == b.OwnerNotice &&
		sameSlice(a.Quantity, b.Quantity)
}

func sameSlice(a, b []model.ProductSlot) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}
