package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/maksimkurb/netstate/src/internal/config"
	"github.com/maksimkurb/netstate/src/internal/core"
	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/log"
	"github.com/maksimkurb/netstate/src/internal/state"
)

// AppContext carries the global flags and the dependency factory shared by
// all commands.
type AppContext struct {
	ConfigPath string
	Verbose    bool

	// NewDependencies builds the engine for a command. Tests replace it
	// with mock backends.
	NewDependencies func(cfg *config.Config, kernelOnly bool) (*core.AppDependencies, error)
}

// NewAppContext returns a context that opens the real backends.
func NewAppContext() *AppContext {
	return &AppContext{
		ConfigPath:      config.DefaultConfigPath,
		NewDependencies: defaultDependencies,
	}
}

func defaultDependencies(cfg *config.Config, kernelOnly bool) (*core.AppDependencies, error) {
	return core.NewAppDependencies(core.AppConfig{Config: cfg, DisableDaemon: kernelOnly})
}

// loadConfigOrFail loads the configuration and applies its logging settings.
// -v wins over the configured level.
func loadConfigOrFail(ctx *AppContext) (*config.Config, error) {
	cfg, err := config.LoadConfig(ctx.ConfigPath)
	if err != nil {
		return nil, errors.NewInvalidArgument("failed to load configuration", err)
	}

	log.SetFormat(cfg.General.LogFormat)
	if ctx.Verbose {
		log.SetVerbose(true)
	} else if err := log.SetLevel(cfg.General.LogLevel); err != nil {
		return nil, errors.NewInvalidArgument(fmt.Sprintf("bad log level %q", cfg.General.LogLevel), err)
	}

	return cfg, nil
}

// openEngine loads the configuration and builds the dependencies.
func openEngine(ctx *AppContext, kernelOnly bool) (*core.AppDependencies, error) {
	cfg, err := loadConfigOrFail(ctx)
	if err != nil {
		return nil, err
	}
	return ctx.NewDependencies(cfg, kernelOnly)
}

// readStateFile reads a JSON or YAML state document. "-" reads stdin.
func readStateFile(path string, stdin io.Reader) (*state.NetworkState, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.NewInvalidArgument(fmt.Sprintf("cannot read %s", path), err)
	}
	return state.ParseAny(data)
}
