package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var askSession string

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Answer one prompt and print the JSON result",
	Long: `Run a single turn through the pipeline and print the result as JSON.

Examples:
  medchat ask "I have a headache and a runny nose"
  medchat ask "hello" --session demo`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "session id (random when empty)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	session := askSession
	if session == "" {
		session = uuid.New().String()
	}

	result := a.orchestrator.Respond(ctx, args[0], session)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
