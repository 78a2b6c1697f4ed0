package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maksimkurb/netstate/src/internal/engine"
	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/log"
)

type applyOptions struct {
	kernelOnly bool
	dryRun     bool
}

func newApplyCommand(ctx *AppContext) *cobra.Command {
	opts := &applyOptions{}
	cmd := &cobra.Command{
		Use:   "apply FILE",
		Short: "Converge the system to a desired state file",
		Long: `Apply a YAML or JSON desired state. Use "-" to read stdin.

The change-set is verified after it is applied and rolled back when any
operation or the verification fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, ctx, opts, args[0])
		},
	}

	cmd.Flags().BoolVarP(&opts.kernelOnly, "kernel-only", "k", false, "Apply through the kernel only, ignoring NetworkManager")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the change-set without applying it")
	return cmd
}

func runApply(cmd *cobra.Command, ctx *AppContext, opts *applyOptions, path string) error {
	desired, err := readStateFile(path, cmd.InOrStdin())
	if err != nil {
		return err
	}

	deps, err := openEngine(ctx, opts.kernelOnly)
	if err != nil {
		return err
	}
	defer deps.Close()

	flags := engine.Flags{KernelOnly: opts.kernelOnly}
	w := cmd.OutOrStdout()

	if opts.dryRun {
		res, err := deps.Engine().Diff(cmd.Context(), desired, flags)
		if err != nil {
			return err
		}
		if res.ChangeSet.IsEmpty() {
			fmt.Fprintln(w, "No changes needed")
			return nil
		}
		fmt.Fprintf(w, "%d operations would be applied:\n", res.ChangeSet.Len())
		fmt.Fprint(w, res.ChangeSet.String())
		return nil
	}

	res, err := deps.Engine().Apply(cmd.Context(), desired, flags)
	if err != nil {
		return err
	}
	log.Debugf("Apply %s finished", res.TxnID)

	out, err := desired.MarshalYAML()
	if err != nil {
		return errors.NewInternal("cannot encode the state", err)
	}
	fmt.Fprintln(w, "Desired state applied:")
	fmt.Fprint(w, string(out))
	return nil
}
