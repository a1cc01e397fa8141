package ui

import (
	"io"

	"github.com/arthur-debert/modman/pkg/logging"
	"github.com/pterm/pterm"
)

// ProgressBar shows install and uninstall phases as pterm progress bars.
// Each phase gets its own bar, removed once the phase is done.
type ProgressBar struct {
	w     io.Writer
	phase string
	bar   *pterm.ProgressbarPrinter
}

// NewProgressBar returns a progress sink writing to w, which should be a
// terminal.
func NewProgressBar(w io.Writer) *ProgressBar {
	return &ProgressBar{w: w}
}

func (p *ProgressBar) Start(phase string, total int) {
	p.Done()
	if total <= 0 {
		return
	}
	bar, err := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle(phase).
		WithWriter(p.w).
		WithRemoveWhenDone(true).
		Start()
	if err != nil {
		logger := logging.GetLogger("ui.progress")
		logger.Debug().Err(err).Msg("Progress bar unavailable")
		return
	}
	p.phase = phase
	p.bar = bar
}

func (p *ProgressBar) Step(item string) {
	if p.bar == nil {
		return
	}
	p.bar.UpdateTitle(p.phase + ": " + item)
	p.bar.Increment()
}

func (p *ProgressBar) Done() {
	if p.bar == nil {
		return
	}
	_, _ = p.bar.Stop()
	p.bar = nil
}
