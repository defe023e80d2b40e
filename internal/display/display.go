// Package display renders snapshots for the local terminal.
package display

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"folio/internal/entity"
	"folio/internal/services/broadcaster"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	categoryStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	symbolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	unknownStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	totalStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	diagStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Engine is the subscription surface the display consumes.
type Engine interface {
	Subscribe() *broadcaster.Observer
	Unsubscribe(o *broadcaster.Observer)
}

// Watch subscribes to the engine and redraws the terminal on every
// snapshot until ctx is cancelled.
func Watch(ctx context.Context, engine Engine) error {
	observer := engine.Subscribe()
	defer engine.Unsubscribe(observer)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-observer.C():
			if !ok {
				return nil
			}
			fmt.Print("\x1b[H\x1b[2J")
			fmt.Println(Render(snap))
		}
	}
}

// Render formats one snapshot as styled terminal text.
func Render(snap entity.Snapshot) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("portfolio"))
	b.WriteString(fmt.Sprintf("  %s\n", snap.TakenAt.Format("15:04:05")))

	var lastCategory entity.Category
	for _, pos := range snap.Positions {
		if pos.Category != lastCategory {
			lastCategory = pos.Category
			b.WriteString("\n")
			b.WriteString(categoryStyle.Render(string(pos.Category)))
			b.WriteString("\n")
		}

		if !pos.Priced {
			b.WriteString(unknownStyle.Render(fmt.Sprintf("  %-10s price unknown", pos.Symbol)))
			b.WriteString("\n")
			continue
		}
		b.WriteString(symbolStyle.Render(fmt.Sprintf("  %-10s %s x $%s = $%s",
			pos.Symbol,
			pos.Quantity.String(),
			pos.Price.StringFixed(2),
			pos.Value.StringFixed(2))))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(totalStyle.Render(fmt.Sprintf("total (USD): $%s", snap.TotalUSD.StringFixed(2))))
	b.WriteString("\n")
	if snap.TargetRateKnown {
		b.WriteString(totalStyle.Render(fmt.Sprintf("total (%s): $%s", snap.TargetCurrency, snap.TotalTarget.StringFixed(2))))
		b.WriteString("\n")
	}

	for _, diag := range snap.Diagnostics {
		b.WriteString(diagStyle.Render("! " + diag))
		b.WriteString("\n")
	}

	return b.String()
}
