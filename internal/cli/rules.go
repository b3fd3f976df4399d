package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/medchat-go/internal/adapters/rules"
	"github.com/0xcro3dile/medchat-go/internal/domain/usecases"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect rule tables",
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate a rules file",
	Long: `Parse and compile a rules file the same way the running server does.
With no file the built-in rules are checked.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{"config": "none"},
	RunE:        runRulesCheck,
}

func init() {
	rulesCmd.AddCommand(rulesCheckCmd)
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}

	rs, err := rules.Load(path)
	if err != nil {
		return err
	}
	if _, err := usecases.CompileRules(rs); err != nil {
		return err
	}

	name := path
	if name == "" {
		name = "built-in rules"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: version %d OK (%d emergency phrases, %d symptom terms, %d boilerplate phrases, %d repetition patterns)\n",
		name, rs.Version, len(rs.EmergencyPhrases), len(rs.ShortSymptomTerms), len(rs.BoilerplatePhrases), len(rs.RepetitionPatterns))
	return nil
}
