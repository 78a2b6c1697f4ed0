package commands

import (
	stderrors "errors"

	"github.com/spf13/cobra"

	"github.com/maksimkurb/netstate/src/internal/config"
	"github.com/maksimkurb/netstate/src/internal/errors"
)

// NewRootCommand builds the netstatectl command tree.
func NewRootCommand(ctx *AppContext, version string) *cobra.Command {
	root := &cobra.Command{
		Use:               "netstatectl",
		Short:             "Declarative network state manager",
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
		Long: `netstatectl reads the network state of this host and converges it to a
desired state described in YAML or JSON. Failed applies are rolled back.`,
	}

	root.PersistentFlags().StringVar(&ctx.ConfigPath, "config", config.DefaultConfigPath, "Path to configuration file")
	root.PersistentFlags().BoolVarP(&ctx.Verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newShowCommand(ctx),
		newApplyCommand(ctx),
		newGenerateCommand(),
		newServeCommand(ctx),
		newVersionCommand(version),
	)
	return root
}

// ExitCode maps a command error to the process exit status: the status of
// its error kind, or 1 for errors that carry none (such as flag errors).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Kind.Status()
	}
	return 1
}
