// Package wizard holds the interactive forms used when a command runs on a
// terminal and was not given everything it needs on the command line.
package wizard

import (
	"context"
	"os"

	"golang.org/x/term"

	"github.com/tessro/spotpanel/internal/config"
	"github.com/tessro/spotpanel/internal/core"
)

// Interactive provides interactive fallback functionality.
type Interactive struct {
	enabled bool
}

// NewInteractive creates a new interactive handler.
func NewInteractive() *Interactive {
	return &Interactive{
		enabled: true,
	}
}

// SetEnabled enables or disables interactive mode.
func (i *Interactive) SetEnabled(enabled bool) {
	i.enabled = enabled
}

// IsTerminal returns true if stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// CanInteract returns true if interactive mode is available.
func (i *Interactive) CanInteract() bool {
	return i.enabled && IsTerminal() && term.IsTerminal(int(os.Stdin.Fd()))
}

// PromptSettings lets the user edit s. It returns false without touching s
// when interactive mode is unavailable.
func (i *Interactive) PromptSettings(ctx context.Context, s *core.Settings) (bool, error) {
	if !i.CanInteract() {
		return false, nil
	}
	if err := SettingsForm(s).RunWithContext(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// PromptConfig asks for the settings a new config file needs most. It
// returns false without touching cfg when interactive mode is unavailable.
func (i *Interactive) PromptConfig(ctx context.Context, cfg *config.Config) (bool, error) {
	if !i.CanInteract() {
		return false, nil
	}
	if err := ConfigForm(cfg).RunWithContext(ctx); err != nil {
		return false, err
	}
	return true, nil
}
