package carlock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/alco-lock/internal/domain/carlock"
)

func TestParseExecuteRequest(t *testing.T) {
	t.Parallel()

	parsed, err := ParseExecuteRequest(NewExecuteRequest(domain.CommandUnlock, &domain.Actor{
		Hostname: "pi",
		Username: "driver",
	}))
	require.NoError(t, err)
	require.Equal(t, "unlock", parsed.Command)
	require.Equal(t, &domain.Actor{Hostname: "pi", Username: "driver"}, parsed.Actor)

	parsed, err = ParseExecuteRequest(NewExecuteRequest(domain.CommandLock, nil))
	require.NoError(t, err)
	require.Nil(t, parsed.Actor)

	_, err = ParseExecuteRequest(nil)
	require.ErrorIs(t, err, errMissingField)
}

func TestStatusFromStruct(t *testing.T) {
	t.Parallel()

	t.Run("without actor", func(t *testing.T) {
		t.Parallel()

		doc := StatusToStruct(&domain.Status{
			Timestamp:       time.Unix(42, 0),
			AlcoholDetected: true,
			Simulation:      true,
		})

		require.Len(t, doc.GetFields(), 4)

		got, err := StatusFromStruct(doc)
		require.NoError(t, err)
		require.True(t, got.AlcoholDetected)
		require.False(t, got.RelayActive)
		require.True(t, got.Simulation)
		require.Nil(t, got.LastActor)
		require.Equal(t, int64(42), got.Timestamp.Unix())
	})

	t.Run("with actor", func(t *testing.T) {
		t.Parallel()

		doc := StatusToStruct(&domain.Status{
			Timestamp:   time.Unix(42, 0),
			RelayActive: true,
			LastActor:   &domain.Actor{Hostname: "pi", Username: "driver"},
		})

		require.Len(t, doc.GetFields(), 5)

		actorDoc := doc.GetFields()[FieldLastActor].GetStructValue()
		require.NotNil(t, actorDoc)
		require.Equal(t, "pi", actorDoc.GetFields()[FieldHostname].GetStringValue())
		require.Equal(t, "driver", actorDoc.GetFields()[FieldUsername].GetStringValue())

		got, err := StatusFromStruct(doc)
		require.NoError(t, err)
		require.True(t, got.RelayActive)
		require.Equal(t, &domain.Actor{Hostname: "pi", Username: "driver"}, got.LastActor)
	})

	t.Run("missing field", func(t *testing.T) {
		t.Parallel()

		_, err := StatusFromStruct(&structpb.Struct{})
		require.ErrorIs(t, err, errMissingField)
	})

	t.Run("wrong type", func(t *testing.T) {
		t.Parallel()

		doc := StatusToStruct(&domain.Status{})
		doc.Fields[FieldRelayActive] = structpb.NewStringValue("yes")

		_, err := StatusFromStruct(doc)
		require.ErrorIs(t, err, errFieldType)
	})
}
