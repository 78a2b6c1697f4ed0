package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maksimkurb/netstate/src/internal/api"
	"github.com/maksimkurb/netstate/src/internal/engine"
	"github.com/maksimkurb/netstate/src/internal/log"
)

const shutdownTimeout = 30 * time.Second

type serveOptions struct {
	bindAddr    string
	maxRestarts int
}

func newServeCommand(ctx *AppContext) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the state API until interrupted. Access is restricted to private
subnets. The listen address defaults to api.listen_addr from the configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.bindAddr, "bind", "", "Address to bind the HTTP server (e.g., 127.0.0.1:8089)")
	cmd.Flags().IntVar(&opts.maxRestarts, "max-restarts", 5, "Give up after this many server crashes (0 = never)")
	return cmd
}

func runServe(cmd *cobra.Command, ctx *AppContext, opts *serveOptions) error {
	deps, err := openEngine(ctx, false)
	if err != nil {
		return err
	}
	defer deps.Close()

	bindAddr := opts.bindAddr
	if bindAddr == "" {
		bindAddr = deps.Config().API.ListenAddr
	}

	log.Infof("Configuration loaded from: %s", ctx.ConfigPath)
	log.Infof("Enabled kinds: %v, NetworkManager: %v", deps.Engine().Kinds(), deps.Engine().DaemonAvailable())
	log.Infof("Access restricted to private subnets only:")
	log.Infof("  IPv4: 10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16, 127.0.0.0/8")
	log.Infof("  IPv6: fc00::/7, fe80::/10, ::1/128")

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := NewRestartableRunner(RunnerConfig{Name: "API server", MaxRestarts: opts.maxRestarts},
		func(runCtx context.Context) error {
			return serveUntilDone(runCtx, deps.Engine(), bindAddr)
		})
	return runner.Run(sigCtx)
}

// serveUntilDone runs one server instance until ctx is cancelled or the
// listener fails.
func serveUntilDone(ctx context.Context, e *engine.Engine, bindAddr string) error {
	server := api.NewServer(e, bindAddr)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			log.Errorf("Error during server shutdown: %v", err)
		}
		<-serverErrors
		log.Infof("Server stopped gracefully")
		return nil
	}
}
