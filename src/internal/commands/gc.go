package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/gen"
)

func newGenerateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gc FILE",
		Short: "Generate NetworkManager keyfiles from a state file",
		Long: `Render the interfaces of a desired state as NetworkManager keyfiles.
The output maps file names to contents. Nothing is applied.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desired, err := readStateFile(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			keyfiles, err := gen.Generate(desired)
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(gen.Files(keyfiles))
			if err != nil {
				return errors.NewInternal("cannot encode keyfiles", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
