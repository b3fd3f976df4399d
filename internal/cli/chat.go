package cli

import (
	"context"
	"io"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/0xcro3dile/medchat-go/internal/infrastructure/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive terminal chat",
	Long: `Open an interactive chat in the terminal. The whole session shares one
conversation id, so follow-up questions see the recent history.

Logs go to log.file only; with no log file they are discarded so they do
not corrupt the screen.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chatLogger := logger
	if cfg.Log.File == "" {
		chatLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	a, err := newApp(ctx, cfg, chatLogger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := watchRules(ctx, a); err != nil {
		return err
	}

	_, err = tea.NewProgram(tui.New(ctx, a.orchestrator), tea.WithAltScreen()).Run()
	return err
}
