package wansim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrafficStreamFailover(t *testing.T) {
	expt := buildRedundantWAN(t)

	// both ends of the HQ-DC link die mid-stream
	require.NoError(t, expt.ScheduleFailure(4.0, "HQ", 1))
	require.NoError(t, expt.ScheduleFailure(4.0, "DC", 0))

	tg, err := expt.AddTraffic("hq-echo", "HQ", "10.1.3.2", 2.0, 1.0, 10, 1024, 0.0)
	require.NoError(t, err)
	require.NoError(t, expt.Run(16.0))

	outcomes := tg.Outcomes()
	require.Len(t, outcomes, 10)
	assert.Equal(t, 10, tg.Delivered())

	// packets sent before the failure ride the direct link, the rest relay
	// through Branch
	for i, oc := range outcomes {
		require.True(t, oc.Delivered, "packet %d", i)
		if i < 2 {
			assert.Equal(t, []string{"HQ", "DC"}, oc.Path, "packet %d", i)
		} else {
			assert.Equal(t, []string{"HQ", "Branch", "DC"}, oc.Path, "packet %d", i)
		}
	}

	dc, _ := expt.Topology().NodeByName("DC")
	assert.Equal(t, 10, dc.Received())
}

func TestTrafficStreamTotalOutage(t *testing.T) {
	expt := buildRedundantWAN(t)

	require.NoError(t, expt.ScheduleFailure(4.0, "HQ", 1))
	require.NoError(t, expt.ScheduleFailure(6.0, "HQ", 0))

	tg, err := expt.AddTraffic("hq-echo", "HQ", "10.1.3.2", 2.0, 1.0, 10, 1024, 0.0)
	require.NoError(t, err)
	require.NoError(t, expt.Run(16.0))

	// sends at t=2,3 go direct, t=4,5 relay through Branch, and from t=6 on
	// HQ has no live egress at all
	assert.Equal(t, 4, tg.Delivered())
	assert.Equal(t, 6, tg.Dropped(DropAllRoutesDown))
	assert.Equal(t, 0, tg.Dropped(DropNoRoute))

	dc, _ := expt.Topology().NodeByName("DC")
	assert.Equal(t, 4, dc.Received())
}

func TestTrafficValidation(t *testing.T) {
	expt := buildRedundantWAN(t)

	_, err := expt.AddTraffic("bad", "Warehouse", "10.1.3.2", 2.0, 1.0, 10, 1024, 0.0)
	assert.Error(t, err)

	_, err = expt.AddTraffic("bad", "HQ", "not-an-addr", 2.0, 1.0, 10, 1024, 0.0)
	assert.Error(t, err)

	_, err = expt.AddTraffic("bad", "HQ", "10.1.3.2", 2.0, 0.0, 10, 1024, 0.0)
	assert.Error(t, err)

	_, err = expt.AddTraffic("echo", "HQ", "10.1.3.2", 2.0, 1.0, 10, 1024, 0.0)
	require.NoError(t, err)
	_, err = expt.AddTraffic("echo", "HQ", "10.1.3.2", 3.0, 1.0, 10, 1024, 0.0)
	assert.Error(t, err)
}
