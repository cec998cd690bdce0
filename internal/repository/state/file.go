package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/alco-lock/internal/config"
	domain "github.com/oshokin/alco-lock/internal/domain/carlock"
)

// Repository defines persistence operations for the relay state.
type Repository interface {
	Load(ctx context.Context) (*domain.RelayState, error)
	Save(ctx context.Context, state *domain.RelayState) error
}

// FileRepository persists the relay state to a JSON file on disk.
// The document is a google.protobuf.Struct encoded with protojson, the same
// shape the gRPC API returns.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

// Field names of the stored document.
const (
	fieldRelayActive = "relay_active"
	fieldTimestamp   = "timestamp"
	fieldHostname    = "hostname"
	fieldUsername    = "username"
)

var (
	// ErrNotFound is returned when the state file does not exist yet.
	ErrNotFound = errors.New("state not found")
	// errMissingRelayField is returned for documents without relay_active.
	errMissingRelayField = errors.New("state file has no relay_active field")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the state from disk.
func (r *FileRepository) Load(_ context.Context) (*domain.RelayState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var document structpb.Struct
	if err = protojson.Unmarshal(contents, &document); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	return fromStruct(&document)
}

// Save writes the state to disk, replacing the file atomically.
func (r *FileRepository) Save(_ context.Context, state *domain.RelayState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	document, err := toStruct(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	data, err := protojson.MarshalOptions{Multiline: true}.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmpPath := r.path + ".tmp"
	if err = os.WriteFile(tmpPath, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	if err = os.Rename(tmpPath, r.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}

// fromStruct converts the stored document into the domain RelayState.
func fromStruct(document *structpb.Struct) (*domain.RelayState, error) {
	fields := document.GetFields()

	active, ok := fields[fieldRelayActive]
	if !ok {
		return nil, errMissingRelayField
	}

	state := &domain.RelayState{
		Active: active.GetBoolValue(),
	}

	if ts := fields[fieldTimestamp].GetStringValue(); ts != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("decode timestamp: %w", err)
		}

		state.Timestamp = parsed
	}

	hostname := fields[fieldHostname].GetStringValue()
	username := fields[fieldUsername].GetStringValue()

	if hostname != "" || username != "" {
		state.LastActor = &domain.Actor{
			Hostname: hostname,
			Username: username,
		}
	}

	return state, nil
}

// toStruct converts the domain RelayState into the stored document.
func toStruct(state *domain.RelayState) (*structpb.Struct, error) {
	values := map[string]any{
		fieldRelayActive: state.Active,
	}

	if !state.Timestamp.IsZero() {
		values[fieldTimestamp] = state.Timestamp.UTC().Format(time.RFC3339Nano)
	}

	if state.LastActor != nil {
		values[fieldHostname] = state.LastActor.Hostname
		values[fieldUsername] = state.LastActor.Username
	}

	return structpb.NewStruct(values)
}
