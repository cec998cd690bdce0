package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/alco-lock/internal/config"
	domain "github.com/oshokin/alco-lock/internal/domain/carlock"
	"github.com/oshokin/alco-lock/internal/logger"
	"github.com/oshokin/alco-lock/internal/service/common"
)

// Options configures a single alco-lock-ctl invocation.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerAddress overrides the gRPC address from config when specified.
	ServerAddress string

	// Command to run; empty means print the status only.
	Command domain.Command

	// RetryInterval is the delay between lock/unlock attempts, one second if zero.
	RetryInterval time.Duration

	// Output receives the status line, os.Stdout if nil.
	Output io.Writer
}

// defaultRetryInterval defines retry delay when pushing the relay state to the server.
const defaultRetryInterval = 1 * time.Second

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run executes the requested command against the lock server.
// Lock and unlock are retried until the server confirms the relay state or ctx
// is canceled; rejected requests end the command immediately.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alco-lock-ctl")

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	// Use server address from options if provided, otherwise use config.
	serverAddress := cfg.GRPCAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	if serverAddress == "" {
		return ErrNoServerAddress
	}

	// Connect to the lock server with timeout from config.
	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return err
	}

	// Close connection on function exit.
	defer func() {
		_ = client.Close()
	}()

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	if opts.Command == "" {
		current, err := client.GetStatus(ctx)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(output, FormatStatus(current))

		return err
	}

	if !opts.Command.Valid() {
		return fmt.Errorf("%q: %w", opts.Command, domain.ErrUnknownCommand)
	}

	// Identify current user and hostname for the audit trail.
	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	result, err := execute(ctx, client, actor, opts)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(output, FormatStatus(result))

	return err
}

// execute runs the command once, or until confirmed for relay commands.
func execute(
	ctx context.Context,
	client *common.Client,
	actor *domain.Actor,
	opts *Options,
) (*domain.Status, error) {
	target, isRelay := opts.Command.RelayTarget()
	if !isRelay {
		return client.Execute(ctx, actor, opts.Command)
	}

	logger.InfoKV(ctx, "Pushing desired relay state", "command", string(opts.Command), "relay_active", target)

	// attempt tries once to change the relay, returns (result, error).
	// A nil result with a nil error means "try again".
	attempt := func() (*domain.Status, error) {
		result, err := client.Execute(ctx, actor, opts.Command)
		if err != nil {
			if permanent(err) {
				return nil, err
			}

			// Log error but continue retrying for transient failures.
			logger.ErrorKV(ctx, "Execute failed", "error", err)

			return nil, nil
		}

		// Check if server confirmed the desired state change.
		if result.RelayActive == target {
			return result, nil
		}

		logger.WarnKV(ctx, "Relay did not confirm the requested state", "relay_active", result.RelayActive)

		return nil, nil
	}

	// Attempt immediately before starting retry loop.
	if result, err := attempt(); err != nil || result != nil {
		return result, err
	}

	interval := opts.RetryInterval
	if interval <= 0 {
		interval = defaultRetryInterval
	}

	// Setup retry timer for subsequent attempts.
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Retry loop until success or cancellation.
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if result, err := attempt(); err != nil || result != nil {
				return result, err
			}
		}
	}
}

// permanent reports errors that retrying cannot fix.
func permanent(err error) bool {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.PermissionDenied, codes.Unauthenticated,
		codes.Unimplemented:
		return true
	default:
		return false
	}
}

// FormatStatus converts a status to a readable line.
func FormatStatus(s *domain.Status) string {
	if s == nil {
		return "<nil status>"
	}

	// Extract timestamp with fallback for missing data.
	timestamp := "<unknown>"
	if !s.Timestamp.IsZero() {
		timestamp = s.Timestamp.Format(time.RFC3339)
	}

	lock := "unlocked"
	if s.Locked() {
		lock = "locked"
	}

	alcohol := "no alcohol"
	if s.AlcoholDetected {
		alcohol = "ALCOHOL DETECTED"
	}

	line := fmt.Sprintf("%s, %s, last change by %s (%s)", lock, alcohol, s.LastActor, timestamp)
	if s.Simulation {
		line += " [simulation]"
	}

	return line
}
