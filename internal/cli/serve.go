package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpserver "github.com/0xcro3dile/medchat-go/internal/infrastructure/http"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP chat endpoint",
	Long: `Start the HTTP front end.

  POST /chat    {"prompt": "...", "session_id": "..."} -> {"responseText", "intent", "confidence"}
  GET  /health  liveness plus rules version and session count

The rules file is watched and hot-reloaded when rules.path is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := watchRules(ctx, a); err != nil {
		return err
	}

	srv := httpserver.NewServer(a.orchestrator, cfg.Server, a.status, logger)
	return srv.Start(ctx)
}
