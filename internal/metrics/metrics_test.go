package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveStatus(t *testing.T) {
	ObserveStatus(true, false, true)

	require.InDelta(t, 1.0, testutil.ToFloat64(AlcoholDetected), 0)
	require.InDelta(t, 0.0, testutil.ToFloat64(RelayActive), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(SimulationMode), 0)

	ObserveStatus(false, true, false)

	require.InDelta(t, 0.0, testutil.ToFloat64(AlcoholDetected), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(RelayActive), 0)
	require.InDelta(t, 0.0, testutil.ToFloat64(SimulationMode), 0)
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(CommandsTotal.WithLabelValues("lock", ResultOK))
	CommandsTotal.WithLabelValues("lock", ResultOK).Inc()
	require.InDelta(t, before+1, testutil.ToFloat64(CommandsTotal.WithLabelValues("lock", ResultOK)), 0)

	before = testutil.ToFloat64(InterlockTripsTotal)
	InterlockTripsTotal.Inc()
	require.InDelta(t, before+1, testutil.ToFloat64(InterlockTripsTotal), 0)
}
