package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alco-lock/internal/config"
	domain "github.com/oshokin/alco-lock/internal/domain/carlock"
	"github.com/oshokin/alco-lock/internal/service/client"
	"github.com/oshokin/alco-lock/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string

	// rootCmd represents the base command; without a subcommand it prints the status.
	rootCmd = &cobra.Command{
		Use:   "alco-lock-ctl [server-address]",
		Short: "Query and control the alcohol detection car lock.",
		Long: `Talks to alco-lock-server over gRPC.

Without a subcommand the current sensor and relay state is printed.
Server address can be provided as argument or loaded from configuration file (grpc_addr).`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCommand(""),
	}
)

// subcommands maps CLI verbs to lock commands.
var subcommands = []struct {
	use   string
	short string
	cmd   domain.Command
}{
	{use: "status", short: "Print the current sensor and relay state."},
	{use: "lock", short: "Lock the ignition, retrying until confirmed.", cmd: domain.CommandLock},
	{use: "unlock", short: "Unlock the ignition, retrying until confirmed.", cmd: domain.CommandUnlock},
	{use: "simulate-on", short: "Simulate alcohol (simulation mode only).", cmd: domain.CommandSimulateOn},
	{use: "simulate-off", short: "Simulate clear air (simulation mode only).", cmd: domain.CommandSimulateOff},
}

// runCommand returns a RunE that sends cmd to the server.
func runCommand(cmd domain.Command) func(*cobra.Command, []string) error {
	return func(c *cobra.Command, args []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		// Use server address argument if provided, otherwise rely on config.
		var serverAddress string
		if len(args) > 0 {
			serverAddress = args[0]
		}

		return client.Run(ctx, &client.Options{
			ConfigPath:    cfgPath,
			ServerAddress: serverAddress,
			Command:       cmd,
			Output:        c.OutOrStdout(),
		})
	}
}

// Execute runs the alco-lock-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")

	for _, sub := range subcommands {
		rootCmd.AddCommand(&cobra.Command{
			Use:   sub.use + " [server-address]",
			Short: sub.short,
			Args:  cobra.MaximumNArgs(1),
			RunE:  runCommand(sub.cmd),
		})
	}
}
