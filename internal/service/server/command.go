package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"google.golang.org/grpc"

	api "github.com/oshokin/alco-lock/internal/api/grpc/carlock"
	"github.com/oshokin/alco-lock/internal/api/mqtt"
	"github.com/oshokin/alco-lock/internal/api/web"
	"github.com/oshokin/alco-lock/internal/config"
	"github.com/oshokin/alco-lock/internal/hardware"
	"github.com/oshokin/alco-lock/internal/logger"
	repository "github.com/oshokin/alco-lock/internal/repository/state"
)

// Options controls the alco-lock-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides the HTTP listen address.
	ListenAddress string
	// GRPCAddress overrides the gRPC listen address.
	GRPCAddress string
	// StateFile overrides the path used to persist the relay state.
	StateFile string
	// LogLevel overrides the configured log level.
	LogLevel string
	// Simulation forces the in-memory sensor and relay.
	Simulation bool
}

// ErrInvalidLogLevel is returned for an unknown --log-level value.
var ErrInvalidLogLevel = errors.New("invalid log level")

// Run starts the HTTP, gRPC and MQTT surfaces and blocks until ctx is canceled
// or one of the servers fails.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alco-lock-server")

	// Load configuration and apply command line overrides.
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}

	// Open GPIO, falling back to simulation.
	board := hardware.Open(ctx, hardware.Options{
		SensorPin:          settings.Sensor.Pin,
		SensorActiveLow:    settings.Sensor.ActiveLow,
		RelayPin:           settings.Relay.Pin,
		RelayActiveLow:     settings.Relay.ActiveLow,
		RelayInitialActive: settings.Relay.InitialActive,
		ForceSimulation:    settings.Simulation,
	})

	defer func() {
		if closeErr := board.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Failed to release GPIO", "error", closeErr)
		}
	}()

	// Create the lock service, restoring the last relay state when persisted.
	serviceOptions := []serviceOption{withInterlock(settings.Interlock.Enabled)}
	if settings.StateFile != "" {
		serviceOptions = append(serviceOptions, withRepository(repository.NewFileRepository(settings.StateFile)))
	}

	svc, err := newService(ctx, board, serviceOptions...)
	if err != nil {
		return fmt.Errorf("initialise service: %w", err)
	}

	// Bridge to MQTT when a broker is configured.
	if settings.MQTT.Enabled() {
		bridge := mqtt.NewBridge(ctx, settings.MQTT, settings.Timeout, svc)
		if err = bridge.Connect(ctx); err != nil {
			return fmt.Errorf("start mqtt bridge: %w", err)
		}

		defer bridge.Close(context.WithoutCancel(ctx))

		svc.setNotifier(bridge)
	}

	// Build the web server before anything starts listening.
	webServer, err := web.NewServer(ctx, svc, web.Options{
		PollInterval: settings.PollInterval,
		Auth:         settings.Auth,
	})
	if err != nil {
		return fmt.Errorf("create web server: %w", err)
	}

	monitorCtx, stopMonitor := context.WithCancel(ctx)

	var wg sync.WaitGroup

	defer func() {
		stopMonitor()
		wg.Wait()
	}()

	// Sample the sensor in the background for the interlock and MQTT state.
	if settings.Interlock.Enabled || settings.MQTT.Enabled() {
		wg.Go(func() {
			svc.watch(monitorCtx, settings.PollInterval)
		})
	}

	errCh := make(chan error, 2)

	// Start the gRPC control API.
	grpcServer, err := startGRPC(ctx, settings.GRPCAddress, svc, errCh)
	if err != nil {
		return err
	}

	// Start the web server.
	go func() {
		if serveErr := webServer.Start(settings.HTTPAddress); serveErr != nil &&
			!errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- fmt.Errorf("serve HTTP: %w", serveErr)
		}
	}()

	logger.InfoKV(ctx, "Alco-lock server started",
		"http_address", settings.HTTPAddress,
		"grpc_address", settings.GRPCAddress,
		"simulation", board.Simulated(),
		"interlock", settings.Interlock.Enabled,
		"state_file", settings.StateFile)

	// Wait for a shutdown signal or a server failure.
	var runErr error

	select {
	case <-ctx.Done():
		logger.Info(ctx, "Shutting down")
	case runErr = <-errCh:
		logger.ErrorKV(ctx, "Server failed, shutting down", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settings.Timeout)
	defer cancel()

	if err = webServer.Shutdown(shutdownCtx); err != nil {
		logger.WarnKV(ctx, "HTTP shutdown incomplete", "error", err)
	}

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	logger.Info(ctx, "Alco-lock server stopped")

	return runErr
}

// loadSettings reads the config file and applies command line overrides.
func loadSettings(opts *Options) (*config.Config, error) {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if opts.ListenAddress != "" {
		settings.HTTPAddress = opts.ListenAddress
	}

	if opts.GRPCAddress != "" {
		settings.GRPCAddress = opts.GRPCAddress
	}

	if opts.StateFile != "" {
		settings.StateFile = opts.StateFile
	}

	if opts.LogLevel != "" {
		settings.LogLevel = opts.LogLevel
	}

	settings.Simulation = settings.Simulation || opts.Simulation

	if err = config.Validate(settings); err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}

	level, ok := logger.ParseLogLevel(settings.LogLevel)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLogLevel, settings.LogLevel)
	}

	logger.SetLevel(level)

	return settings, nil
}

// startGRPC serves the control API on address. An empty address disables it.
func startGRPC(ctx context.Context, address string, svc *service, errCh chan<- error) (*grpc.Server, error) {
	if address == "" {
		return nil, nil //nolint:nilnil // The API is optional.
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}

	grpcServer := grpc.NewServer()
	api.Register(grpcServer, api.NewServer(svc))

	go func() {
		if serveErr := grpcServer.Serve(lis); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("serve gRPC: %w", serveErr)
		}
	}()

	return grpcServer, nil
}
