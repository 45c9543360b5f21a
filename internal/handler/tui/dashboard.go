// Package tui draws the vending machine in a terminal and turns key
// presses into controller commands.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/vending/vending-gui/internal/adapter/controller"
	"github.com/vending/vending-gui/internal/domain/model"
	"github.com/vending/vending-gui/internal/service"
	"github.com/vending/vending-gui/internal/view"
)

const commandTimeout = 10 * time.Second

// Dashboard owns the terminal while it runs.
type Dashboard struct {
	session  service.Sessioner
	commands controller.Commander
	renderer *view.Renderer
	id       model.Identity
	logger   *slog.Logger
}

func NewDashboard(id model.Identity, session service.Sessioner, commands controller.Commander, renderer *view.Renderer, logger *slog.Logger) *Dashboard {
	return &Dashboard{
		session:  session,
		commands: commands,
		renderer: renderer,
		id:       id,
		logger:   logger,
	}
}

// Run initializes the terminal and draws every snapshot until the user
// quits, ctx is cancelled or the session closes.
func (d *Dashboard) Run(ctx context.Context) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer ui.Close()

	w := d.session.Watch()
	defer w.Close()

	events := ui.PollEvents()
	current := d.session.Snapshot()
	d.draw(current)

	for {
		select {
		case <-ctx.Done():
			return nil

		case st, ok := <-w.Recv():
			if !ok {
				return nil
			}
			current = st
			d.draw(current)

		case e := <-events:
			if e.Type == ui.MouseEvent {
				continue
			}
			if quit := d.handle(ctx, Resolve(e.ID)); quit {
				return nil
			}
			if e.Type == ui.ResizeEvent {
				d.draw(current)
			}
		}
	}
}

// handle runs one action and reports whether the dashboard should exit.
func (d *Dashboard) handle(ctx context.Context, a Action) bool {
	switch a.Kind {
	case ActionQuit:
		return true
	case ActionDismiss:
		// [UI_ONLY] the controller never hears about a dismissal
		d.session.DismissNotice()
	case ActionSelect:
		d.dispatch(ctx, "select", func(ctx context.Context) error {
			return d.commands.SelectProduct(ctx, a.Code)
		})
	case ActionCredit:
		d.dispatch(ctx, "credit", func(ctx context.Context) error {
			return d.commands.InsertCredit(ctx, a.Amount)
		})
	case ActionWithdraw:
		d.dispatch(ctx, "withdrawn", d.commands.WithdrawCredit)
	}
	return false
}

// dispatch fires a command on its own goroutine. Its outcome is only
// logged; the effect comes back as events.
func (d *Dashboard) dispatch(ctx context.Context, name string, call func(context.Context) error) {
	go func() {
		cctx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()

		if err := call(cctx); err != nil {
			d.logger.Debug("TUI_COMMAND_FAILED", "command", name, "err", err)
		}
	}()
}

func (d *Dashboard) draw(st model.UiState) {
	width, height := ui.TerminalDimensions()
	ui.Clear()
	ui.Render(Layout(d.renderer.Build(st), d.id, width, height)...)
}

// Layout places the widgets for vm on a width x height terminal.
func Layout(vm view.ViewModel, id model.Identity, width, height int) []ui.Drawable {
	width = max(width, 40)
	height = max(height, 20)
	half := width / 2

	lcd := widgets.NewParagraph()
	lcd.Title = " " + id.String() + " "
	lcd.Text = vm.LCD
	lcd.TextStyle = ui.NewStyle(ui.ColorGreen, ui.ColorClear, ui.ModifierBold)
	lcd.SetRect(0, 0, width, 3)

	keys := widgets.NewParagraph()
	keys.Title = " Panel "
	keys.Text = panelText()
	keys.SetRect(0, 3, half, 11)

	coins := widgets.NewParagraph()
	coins.Title = " Money "
	coins.Text = coinText()
	coins.SetRect(half, 3, width, 11)

	products := widgets.NewList()
	products.Title = " Products "
	products.Rows = productRows(vm.Products)
	products.WrapText = false
	products.SetRect(0, 11, width, height-3)

	footer := widgets.NewParagraph()
	footer.Text = fmt.Sprintf("credit %s | income %s | 1-9 select  c withdraw  z/x/v insert 1/2/5  q quit", vm.Credit, vm.Income)
	footer.Border = false
	footer.SetRect(0, height-3, width, height)

	drawables := []ui.Drawable{lcd, keys, coins, products, footer}

	if vm.HasNotice {
		popup := widgets.NewParagraph()
		popup.Title = " " + view.NoticeTitle + " "
		popup.Text = vm.Notice + "\n\n[Esc] dismiss"
		popup.BorderStyle = ui.NewStyle(ui.ColorRed)
		popup.SetRect(width/4, height/3, width-width/4, height/3+6)
		drawables = append(drawables, popup)
	}

	return drawables
}

func panelText() string {
	var b strings.Builder
	for _, row := range view.SelectionRows() {
		for i, key := range row {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "[%s]", key)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func coinText() string {
	var b strings.Builder
	for i, c := range view.Coins {
		key := "?"
		if i < len(CoinKeys) {
			key = CoinKeys[i]
		}
		fmt.Fprintf(&b, "[%s] %d  %s\n", key, c.Amount, c.Label)
	}
	return b.String()
}

func productRows(rows []view.ProductRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, fmt.Sprintf(" %-3s %8s  %s", r.Code, r.Price, r.Glyphs))
	}
	return out
}
