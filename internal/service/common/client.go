//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/alco-lock/internal/api/grpc/carlock"
	"github.com/oshokin/alco-lock/internal/config"
	domain "github.com/oshokin/alco-lock/internal/domain/carlock"
)

// Client wraps a connection to the LockService with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the lock server.
	conn grpc.ClientConnInterface
	// closer releases conn.
	closer func() error

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errActorRequired is returned when an actor is not provided but is required for the operation.
	errActorRequired = errors.New("actor must be provided")
)

// Dial establishes a gRPC connection to the lock server.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial lock server: %w", err)
	}

	return NewClient(conn, conn.Close, opts...), nil
}

// NewClient wraps an existing connection. closer may be nil.
func NewClient(conn grpc.ClientConnInterface, closer func() error, opts ...Option) *Client {
	client := &Client{
		conn:        conn,
		closer:      closer,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}

	return c.closer()
}

// GetStatus retrieves the current sensor and relay state.
func (c *Client) GetStatus(ctx context.Context) (*domain.Status, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response := new(structpb.Struct)
	if err := c.conn.Invoke(callCtx, api.MethodGetStatus, new(emptypb.Empty), response); err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	status, err := api.StatusFromStruct(response)
	if err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}

	return status, nil
}

// Execute runs cmd on the server on behalf of actor.
func (c *Client) Execute(ctx context.Context, actor *domain.Actor, cmd domain.Command) (*domain.Status, error) {
	if actor == nil {
		return nil, errActorRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response := new(structpb.Struct)
	if err := c.conn.Invoke(callCtx, api.MethodExecute, api.NewExecuteRequest(cmd, actor), response); err != nil {
		return nil, fmt.Errorf("execute %s: %w", cmd, err)
	}

	status, err := api.StatusFromStruct(response)
	if err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}

	return status, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
