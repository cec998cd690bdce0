package carlock

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/alco-lock/internal/domain/carlock"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	Status(ctx context.Context) *domain.Status
	Execute(ctx context.Context, actor *domain.Actor, cmd domain.Command) (*domain.Status, error)
}

// Server implements the LockService gRPC API.
type Server struct {
	// service provides the lock business logic.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// GetStatus returns the current sensor and relay state.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return StatusToStruct(s.service.Status(ctx)), nil
}

// Execute runs a lock, unlock or simulation command.
func (s *Server) Execute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	parsed, err := ParseExecuteRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	cmd, ok := domain.ParseCommand(parsed.Command)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unknown command %q", parsed.Command)
	}

	result, err := s.service.Execute(ctx, parsed.Actor, cmd)
	if err != nil {
		return nil, toStatusError(err)
	}

	return StatusToStruct(result), nil
}

// toStatusError maps service errors to gRPC codes.
func toStatusError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnknownCommand):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotSimulated), errors.Is(err, domain.ErrInterlocked):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, "unable to execute command")
	}
}
