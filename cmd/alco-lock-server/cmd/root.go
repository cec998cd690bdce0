package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alco-lock/internal/config"
	"github.com/oshokin/alco-lock/internal/logger"
	"github.com/oshokin/alco-lock/internal/service/server"
	"github.com/oshokin/alco-lock/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// listenAddress overrides the HTTP listen address.
	listenAddress string
	// stateFile path where the relay state is persisted.
	stateFile string
	// grpcAddress overrides the gRPC listen address.
	grpcAddress string
	// logLevel overrides the configured log level.
	logLevel string
	// simulate forces simulation mode.
	simulate bool

	// rootCmd represents the base command for running the lock server.
	rootCmd = &cobra.Command{
		Use:   "alco-lock-server [listen-address]",
		Short: "Run the alcohol detection car lock server.",
		Long: `Starts the car lock server: it reads the MQ-3 alcohol sensor, drives the
ignition relay and serves a status page with lock/unlock controls.

The status page listens on http_addr (default :5000), the gRPC control API on
grpc_addr (default :5051). A listen address argument overrides http_addr.
When GPIO cannot be initialised the server runs in simulation mode, where the
sensor reading can be toggled from the page.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			defer logger.Sync()

			// Use listen address argument if provided, otherwise the flag or config.
			address := listenAddress
			if len(args) > 0 {
				address = args[0]
			}

			options := &server.Options{
				ConfigPath:    configPath,
				ListenAddress: address,
				GRPCAddress:   grpcAddress,
				StateFile:     stateFile,
				LogLevel:      logLevel,
				Simulation:    simulate,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the alco-lock-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(hashPasswordCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVar(&listenAddress, "listen", "", "HTTP listen address, e.g. :5000")
	rootCmd.Flags().StringVarP(&stateFile, "state-file", "s", "", "path to persist the relay state")
	rootCmd.Flags().StringVarP(&grpcAddress, "grpc", "g", "", "gRPC listen address")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn, error")
	rootCmd.Flags().BoolVar(&simulate, "simulate", false, "run without GPIO, toggle the sensor from the page")
}
