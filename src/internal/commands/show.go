package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maksimkurb/netstate/src/internal/engine"
	"github.com/maksimkurb/netstate/src/internal/errors"
)

type showOptions struct {
	kernelOnly bool
	json       bool
}

func newShowCommand(ctx *AppContext) *cobra.Command {
	opts := &showOptions{}
	cmd := &cobra.Command{
		Use:   "show [IFNAME]",
		Short: "Print the current network state",
		Long: `Print the current network state as YAML (default) or JSON.

With IFNAME only that interface and the routes through it are shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ifname := ""
			if len(args) == 1 {
				ifname = args[0]
			}
			return runShow(cmd, ctx, opts, ifname)
		},
	}

	cmd.Flags().BoolVarP(&opts.kernelOnly, "kernel-only", "k", false, "Read the kernel only, ignoring NetworkManager")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print JSON instead of YAML")
	return cmd
}

func runShow(cmd *cobra.Command, ctx *AppContext, opts *showOptions, ifname string) error {
	deps, err := openEngine(ctx, opts.kernelOnly)
	if err != nil {
		return err
	}
	defer deps.Close()

	res, err := deps.Engine().Retrieve(cmd.Context(), engine.Flags{KernelOnly: opts.kernelOnly})
	if err != nil {
		return err
	}

	current := res.State
	if ifname != "" {
		if current.Interface(ifname) == nil {
			return errors.NewInvalidArgument(fmt.Sprintf("interface %s not found", ifname), nil)
		}
		current = current.FilterInterfaces(ifname)
	}

	var out []byte
	if opts.json {
		out, err = current.MarshalIndent()
	} else {
		out, err = current.MarshalYAML()
	}
	if err != nil {
		return errors.NewInternal("cannot encode the state", err)
	}

	w := cmd.OutOrStdout()
	if opts.json {
		fmt.Fprintln(w, string(out))
	} else {
		fmt.Fprint(w, string(out))
	}
	return nil
}
