package wansim

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// buildRedundantWAN assembles three sites in a triangle.  HQ reaches the
// DC network directly over the HQ-DC link with a lower-metric route, and
// through Branch with a higher-metric one; DC's return routes mirror that.
func buildRedundantWAN(t *testing.T) *Experiment {
	t.Helper()
	expt := CreateExperiment("redundant-wan", testLogger(), true)

	for _, name := range []string{"HQ", "Branch", "DC"} {
		require.NoError(t, expt.AddNode(name))
	}
	require.NoError(t, expt.AddLink("HQ", "10.1.1.1", "Branch", "10.1.1.2", "255.255.255.0", 0.002, 5.0e6))
	require.NoError(t, expt.AddLink("HQ", "10.1.2.1", "DC", "10.1.2.2", "255.255.255.0", 0.002, 5.0e6))
	require.NoError(t, expt.AddLink("Branch", "10.1.3.1", "DC", "10.1.3.2", "255.255.255.0", 0.002, 5.0e6))

	require.NoError(t, expt.AddRoute("HQ", "10.1.3.0", "255.255.255.0", "10.1.2.2", 1, 10))
	require.NoError(t, expt.AddRoute("HQ", "10.1.3.0", "255.255.255.0", "10.1.1.2", 0, 20))
	require.NoError(t, expt.AddRoute("DC", "10.1.1.0", "255.255.255.0", "10.1.2.1", 0, 10))
	require.NoError(t, expt.AddRoute("DC", "10.1.1.0", "255.255.255.0", "10.1.3.1", 1, 20))
	return expt
}

func TestForwardPrimaryPath(t *testing.T) {
	expt := buildRedundantWAN(t)

	oc, err := expt.Send("HQ", "10.1.3.2", 1024)
	require.NoError(t, err)
	assert.True(t, oc.Delivered)
	assert.Equal(t, "DC", oc.DstNode)
	assert.Equal(t, []string{"HQ", "DC"}, oc.Path)
	assert.InDelta(t, 0.002, oc.Latency, 1e-9)
}

func TestForwardFailover(t *testing.T) {
	expt := buildRedundantWAN(t)
	hq, _ := expt.Topology().NodeByName("HQ")

	// primary egress goes down; the metric-20 route through Branch takes over
	expt.lsc.DisableIntrfc(hq.Intrfcs()[1])

	oc, err := expt.Send("HQ", "10.1.3.2", 1024)
	require.NoError(t, err)
	assert.True(t, oc.Delivered)
	assert.Equal(t, "DC", oc.DstNode)
	assert.Equal(t, []string{"HQ", "Branch", "DC"}, oc.Path)
	assert.InDelta(t, 0.004, oc.Latency, 1e-9)
}

func TestForwardRecovery(t *testing.T) {
	expt := buildRedundantWAN(t)
	hq, _ := expt.Topology().NodeByName("HQ")

	expt.lsc.DisableIntrfc(hq.Intrfcs()[1])
	expt.lsc.EnableIntrfc(hq.Intrfcs()[1])

	oc, err := expt.Send("HQ", "10.1.3.2", 1024)
	require.NoError(t, err)
	assert.Equal(t, []string{"HQ", "DC"}, oc.Path)
}

func TestForwardDrops(t *testing.T) {
	t.Run("no route", func(t *testing.T) {
		expt := buildRedundantWAN(t)
		oc, err := expt.Send("HQ", "192.168.1.1", 1024)
		require.NoError(t, err)
		assert.False(t, oc.Delivered)
		assert.Equal(t, DropNoRoute, oc.Reason)
		assert.Equal(t, []string{"HQ"}, oc.Path)
	})

	t.Run("all routes down", func(t *testing.T) {
		expt := buildRedundantWAN(t)
		hq, _ := expt.Topology().NodeByName("HQ")
		expt.lsc.DisableIntrfc(hq.Intrfcs()[0])
		expt.lsc.DisableIntrfc(hq.Intrfcs()[1])

		oc, err := expt.Send("HQ", "10.1.3.2", 1024)
		require.NoError(t, err)
		assert.False(t, oc.Delivered)
		assert.Equal(t, DropAllRoutesDown, oc.Reason)
	})

	t.Run("forwarding loop hits the hop limit", func(t *testing.T) {
		expt := buildRedundantWAN(t)
		// HQ and Branch each point a route for an absent network at the other
		require.NoError(t, expt.AddRoute("HQ", "10.9.9.0", "255.255.255.0", "10.1.1.2", 0, 10))
		require.NoError(t, expt.AddRoute("Branch", "10.9.9.0", "255.255.255.0", "10.1.1.1", 0, 10))

		oc, err := expt.Send("HQ", "10.9.9.9", 1024)
		require.NoError(t, err)
		assert.False(t, oc.Delivered)
		assert.Equal(t, DropHopLimit, oc.Reason)
	})
}

func TestDisableIdempotent(t *testing.T) {
	expt := buildRedundantWAN(t)
	hq, _ := expt.Topology().NodeByName("HQ")
	intrfc := hq.Intrfcs()[1]

	expt.lsc.DisableIntrfc(intrfc)
	expt.lsc.DisableIntrfc(intrfc)
	assert.False(t, intrfc.Active())

	oc, err := expt.Send("HQ", "10.1.3.2", 1024)
	require.NoError(t, err)
	assert.Equal(t, []string{"HQ", "Branch", "DC"}, oc.Path)
}

func TestScheduledFailureMidRun(t *testing.T) {
	expt := buildRedundantWAN(t)

	require.NoError(t, expt.ScheduleFailure(4.0, "HQ", 1))
	require.NoError(t, expt.ScheduleFailure(4.0, "DC", 0))
	require.NoError(t, expt.ScheduleSend(3.0, "HQ", "10.1.3.2", 1024))
	require.NoError(t, expt.ScheduleSend(5.0, "HQ", "10.1.3.2", 1024))
	require.NoError(t, expt.Run(16.0))

	outcomes := expt.Outcomes()
	require.Len(t, outcomes, 2)
	assert.Equal(t, []string{"HQ", "DC"}, outcomes[0].Path)
	assert.Equal(t, []string{"HQ", "Branch", "DC"}, outcomes[1].Path)

	dc, _ := expt.Topology().NodeByName("DC")
	assert.Equal(t, 2, dc.Received())
}

func TestScheduleFailureValidation(t *testing.T) {
	expt := buildRedundantWAN(t)
	assert.Error(t, expt.ScheduleFailure(4.0, "Warehouse", 0))
	assert.Error(t, expt.ScheduleFailure(4.0, "HQ", 9))
}

func TestRcvFunc(t *testing.T) {
	expt := buildRedundantWAN(t)
	dc, _ := expt.Topology().NodeByName("DC")

	got := []int{}
	dc.SetRcvFunc(func(evtMgr *EventScheduler, context any, data any) any {
		pckt := data.(*Packet)
		got = append(got, pckt.MsgLen)
		return nil
	})

	require.NoError(t, expt.ScheduleSend(1.0, "HQ", "10.1.3.2", 512))
	require.NoError(t, expt.Run(16.0))
	assert.Equal(t, []int{512}, got)
	assert.Equal(t, 1, dc.Received())
}

func TestRoutingTableDump(t *testing.T) {
	expt := buildRedundantWAN(t)

	require.NoError(t, expt.ScheduleFailure(4.0, "HQ", 1))
	require.NoError(t, expt.ScheduleRoutingTableDump(1.0, "HQ"))
	require.NoError(t, expt.ScheduleRoutingTableDump(5.0, "HQ"))
	require.NoError(t, expt.Run(16.0))

	dumps := expt.Dumps()
	require.Len(t, dumps, 2)
	assert.Equal(t, 1.0, dumps[0].Time)
	assert.Equal(t, 5.0, dumps[1].Time)

	// before the failure every entry is active
	for _, rd := range dumps[0].Routes {
		assert.True(t, rd.Active)
	}

	// afterward exactly the entries leaving on interface 1 show down
	for _, rd := range dumps[1].Routes {
		if rd.IntrfcIdx == 1 {
			assert.False(t, rd.Active)
		} else {
			assert.True(t, rd.Active)
		}
	}

	// connected routes appear alongside the configured ones
	sawConnected := false
	for _, rd := range dumps[0].Routes {
		if rd.Connected {
			sawConnected = true
			assert.Equal(t, 0, rd.Metric)
		}
	}
	assert.True(t, sawConnected)

	_, err := expt.DumpRoutingTable("Warehouse")
	assert.Error(t, err)
}
