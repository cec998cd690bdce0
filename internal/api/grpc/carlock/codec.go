package carlock

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/alco-lock/internal/domain/carlock"
)

// Field names of the Struct documents exchanged by the lock service.
const (
	FieldCommand         = "command"
	FieldHostname        = "hostname"
	FieldUsername        = "username"
	FieldAlcoholDetected = "alcohol_detected"
	FieldRelayActive     = "relay_active"
	FieldSimulation      = "simulation"
	FieldTimestamp       = "timestamp"
	FieldLastActor       = "last_actor"
)

var (
	// errMissingField is returned when a required field is absent.
	errMissingField = errors.New("missing field")
	// errFieldType is returned when a field holds an unexpected kind.
	errFieldType = errors.New("unexpected field type")
)

// ExecuteRequest is the decoded form of an Execute request.
type ExecuteRequest struct {
	Command string
	Actor   *domain.Actor
}

// NewExecuteRequest builds the Struct sent to Execute.
func NewExecuteRequest(cmd domain.Command, actor *domain.Actor) *structpb.Struct {
	fields := map[string]*structpb.Value{
		FieldCommand: structpb.NewStringValue(string(cmd)),
	}

	if actor != nil {
		fields[FieldHostname] = structpb.NewStringValue(actor.Hostname)
		fields[FieldUsername] = structpb.NewStringValue(actor.Username)
	}

	return &structpb.Struct{Fields: fields}
}

// ParseExecuteRequest decodes an Execute request. The actor is nil when
// neither hostname nor username is set.
func ParseExecuteRequest(req *structpb.Struct) (*ExecuteRequest, error) {
	command, err := stringField(req, FieldCommand, true)
	if err != nil {
		return nil, err
	}

	hostname, err := stringField(req, FieldHostname, false)
	if err != nil {
		return nil, err
	}

	username, err := stringField(req, FieldUsername, false)
	if err != nil {
		return nil, err
	}

	result := &ExecuteRequest{Command: command}
	if hostname != "" || username != "" {
		result.Actor = &domain.Actor{
			Hostname: hostname,
			Username: username,
		}
	}

	return result, nil
}

// StatusToStruct encodes a status with the same field names as GET /status,
// plus last_actor when known.
func StatusToStruct(status *domain.Status) *structpb.Struct {
	if status == nil {
		return &structpb.Struct{Fields: map[string]*structpb.Value{}}
	}

	fields := map[string]*structpb.Value{
		FieldAlcoholDetected: structpb.NewBoolValue(status.AlcoholDetected),
		FieldRelayActive:     structpb.NewBoolValue(status.RelayActive),
		FieldSimulation:      structpb.NewBoolValue(status.Simulation),
		FieldTimestamp:       structpb.NewNumberValue(float64(status.Timestamp.Unix())),
	}

	if status.LastActor != nil {
		fields[FieldLastActor] = structpb.NewStructValue(&structpb.Struct{
			Fields: map[string]*structpb.Value{
				FieldHostname: structpb.NewStringValue(status.LastActor.Hostname),
				FieldUsername: structpb.NewStringValue(status.LastActor.Username),
			},
		})
	}

	return &structpb.Struct{Fields: fields}
}

// StatusFromStruct decodes a status produced by StatusToStruct.
func StatusFromStruct(doc *structpb.Struct) (*domain.Status, error) {
	alcohol, err := boolField(doc, FieldAlcoholDetected)
	if err != nil {
		return nil, err
	}

	relay, err := boolField(doc, FieldRelayActive)
	if err != nil {
		return nil, err
	}

	simulation, err := boolField(doc, FieldSimulation)
	if err != nil {
		return nil, err
	}

	status := &domain.Status{
		AlcoholDetected: alcohol,
		RelayActive:     relay,
		Simulation:      simulation,
	}

	if v, ok := doc.GetFields()[FieldTimestamp]; ok {
		number, isNumber := v.GetKind().(*structpb.Value_NumberValue)
		if !isNumber {
			return nil, fmt.Errorf("%w: %s", errFieldType, FieldTimestamp)
		}

		status.Timestamp = time.Unix(int64(number.NumberValue), 0)
	}

	if v, ok := doc.GetFields()[FieldLastActor]; ok {
		actorDoc := v.GetStructValue()
		if actorDoc == nil {
			return nil, fmt.Errorf("%w: %s", errFieldType, FieldLastActor)
		}

		status.LastActor = &domain.Actor{
			Hostname: actorDoc.GetFields()[FieldHostname].GetStringValue(),
			Username: actorDoc.GetFields()[FieldUsername].GetStringValue(),
		}
	}

	return status, nil
}

func stringField(doc *structpb.Struct, name string, required bool) (string, error) {
	v, ok := doc.GetFields()[name]
	if !ok {
		if required {
			return "", fmt.Errorf("%w: %s", errMissingField, name)
		}

		return "", nil
	}

	s, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString {
		return "", fmt.Errorf("%w: %s", errFieldType, name)
	}

	return s.StringValue, nil
}

func boolField(doc *structpb.Struct, name string) (bool, error) {
	v, ok := doc.GetFields()[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", errMissingField, name)
	}

	b, isBool := v.GetKind().(*structpb.Value_BoolValue)
	if !isBool {
		return false, fmt.Errorf("%w: %s", errFieldType, name)
	}

	return b.BoolValue, nil
}
