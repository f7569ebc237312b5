package wansim

// linkfail.go implements scheduled interface failure.  A failure acts on
// one end of a link: the named interface stops carrying traffic, while its
// peer stays up unless it is failed separately.  Routes are never retracted
// on failure; the forwarding engine discovers the dead interface at
// route-selection time.

import (
	"log/slog"
)

// The LinkStateController applies scheduled state changes to interfaces
type LinkStateController struct {
	topo  *Topology
	sched *EventScheduler
	tm    *TraceManager
	log   *slog.Logger
}

// CreateLinkStateController is a constructor
func CreateLinkStateController(topo *Topology, sched *EventScheduler, tm *TraceManager, log *slog.Logger) *LinkStateController {
	lsc := new(LinkStateController)
	lsc.topo = topo
	lsc.sched = sched
	lsc.tm = tm
	lsc.log = log
	return lsc
}

// ScheduleFailure arranges for an interface to go down at the given
// simulation time.  The node and interface are resolved immediately so a
// bad name or index is reported at configuration time, not mid-run.
func (lsc *LinkStateController) ScheduleFailure(time float64, nodeName string, intrfcIdx int) error {
	node, present := lsc.topo.nodeByName[nodeName]
	if !present {
		return cfgErrorf("failure names unknown node %s", nodeName)
	}
	if intrfcIdx < 0 || intrfcIdx >= len(node.intrfcs) {
		return cfgErrorf("failure names interface %d on node %s, which has %d interfaces",
			intrfcIdx, nodeName, len(node.intrfcs))
	}
	return lsc.sched.Schedule(lsc, node.intrfcs[intrfcIdx], intrfcDown, time)
}

// DisableIntrfc marks an interface inactive, immediately.  Disabling an
// interface that is already down changes nothing.
func (lsc *LinkStateController) DisableIntrfc(intrfc *Intrfc) {
	if !intrfc.active {
		return
	}
	intrfc.active = false
	lsc.log.Info("interface down", "time", lsc.sched.CurrentSeconds(),
		"node", intrfc.device.name, "intrfc", intrfc.name)
	lsc.tm.AddLinkTrace(lsc.sched.CurrentTime(), intrfc.number, false)
}

// EnableIntrfc marks an interface active again
func (lsc *LinkStateController) EnableIntrfc(intrfc *Intrfc) {
	if intrfc.active {
		return
	}
	intrfc.active = true
	lsc.log.Info("interface up", "time", lsc.sched.CurrentSeconds(),
		"node", intrfc.device.name, "intrfc", intrfc.name)
	lsc.tm.AddLinkTrace(lsc.sched.CurrentTime(), intrfc.number, true)
}

// intrfcDown is the event handler for a scheduled interface failure
func intrfcDown(evtMgr *EventScheduler, context any, data any) any {
	lsc := context.(*LinkStateController)
	intrfc := data.(*Intrfc)
	lsc.DisableIntrfc(intrfc)
	return nil
}
