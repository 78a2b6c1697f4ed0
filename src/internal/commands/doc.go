// Package commands implements the netstatectl command line.
//
// Every sub-command is a cobra command built from a shared AppContext that
// holds the global flags and the dependency factory. Commands are thin: they
// parse files and flags, call the engine and print the result.
//
// # Available Commands
//
//   - show: Print the current network state as YAML or JSON
//   - apply: Converge the system to a state file
//   - gc: Generate NetworkManager keyfiles from a state file
//   - serve: Run the HTTP API
//   - version: Print the build version
//
// # Example Usage
//
//	root := commands.NewRootCommand(commands.NewAppContext(), "1.0.0")
//	root.SetArgs([]string{"show", "eth0", "--kernel-only"})
//	if err := root.Execute(); err != nil {
//	    os.Exit(commands.ExitCode(err))
//	}
package commands
