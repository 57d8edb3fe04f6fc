package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fixturekit/internal/roles"
)

// AskOptions holds flags for the ask command.
type AskOptions struct {
	*RootOptions
	Name string
}

// NewAskCommand creates the ask command.
func NewAskCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AskOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ask <role> <question>",
		Short: "Ask a question of someone with a role",
		Long: `Ask a question of a human, student, mentor, curator or reviewer.
Roles without a specific answer fall back to the human one.

Example:
  fixturekit ask --name Ivan mentor "мне грустненько, что делать?"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ask(cmd, opts, args[0], strings.Join(args[1:], " "))
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "name of the person asked (default: the role)")
	return cmd
}

func ask(cmd *cobra.Command, opts *AskOptions, roleName, question string) error {
	role, err := roles.ParseRole(roleName)
	if err != nil {
		return WrapExitError(ExitCommandError, "unknown role", err)
	}
	name := opts.Name
	if name == "" {
		name = string(role)
	}

	you := roles.New("you", roles.Human)
	exchange := you.Ask(roles.New(name, role), question)

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return f.Success(map[string]string{
			"role":     string(role),
			"question": exchange.Question,
			"answer":   exchange.Answer,
		})
	}
	return f.Success(exchange.String())
}
