package wansim

// fwd.go implements the forwarding engine.  Route selection happens
// freshly for every packet at the moment it is sent: disabling a link never
// retracts the routes that name it, so the engine walks the ordered
// candidate list and steps past any candidate whose egress interface is
// down.  That walk is the entire failover mechanism.

import (
	"log/slog"
	"net/netip"
	"strings"
)

// dropReason enumerates the ways a packet can fail to reach its destination
type dropReason int

const (
	// DropNone marks a delivered packet
	DropNone dropReason = iota

	// DropNoRoute: no configured route's network contains the destination
	DropNoRoute

	// DropAllRoutesDown: every candidate route's egress interface is inactive
	DropAllRoutesDown

	// DropHopLimit: the packet was relayed through more nodes than the hop
	// budget allows, which with static routes means a forwarding loop
	DropHopLimit
)

// dropReasonToStr returns a string corresponding to an input dropReason
func dropReasonToStr(reason dropReason) string {
	switch reason {
	case DropNone:
		return "None"
	case DropNoRoute:
		return "NoRoute"
	case DropAllRoutesDown:
		return "AllRoutesDown"
	case DropHopLimit:
		return "HopLimit"
	}
	return "Unknown"
}

func (reason dropReason) String() string {
	return dropReasonToStr(reason)
}

// hopLimit bounds the number of nodes a packet may be relayed through,
// playing the role the IP TTL plays in a real network
const hopLimit = 32

// A Packet is the ephemeral unit of traffic handed to the forwarding
// engine.  It exists only for the duration of its passage.
type Packet struct {
	ID      int        // unique per packet, keys trace records
	SrcNode string     // name of the originating node
	DstAddr netip.Addr // destination interface address
	MsgLen  int        // payload size in bytes
	Created float64    // simulation time the packet was created
}

// A SendOutcome records what became of one packet: either delivery at the
// node owning the destination address, or a drop with its reason.  Outcomes
// are observable results, never errors; a drop does not disturb the run.
type SendOutcome struct {
	Delivered bool
	DstNode   string     // node the packet was delivered to, when Delivered
	Reason    dropReason // why the packet was dropped, when !Delivered
	Latency   float64    // accumulated propagation delay over the path taken
	Path      []string   // names of the nodes visited, source first
}

// PathString renders the visited nodes for logs and reports
func (oc *SendOutcome) PathString() string {
	return strings.Join(oc.Path, ",")
}

// The ForwardingEngine carries a packet from its source toward the node
// owning its destination address, re-selecting a viable route at every node
// it visits
type ForwardingEngine struct {
	topo    *Topology
	sched   *EventScheduler
	tm      *TraceManager
	log     *slog.Logger
	numPckt int
}

// nxtPcktID returns a unique id for a new packet
func (fe *ForwardingEngine) nxtPcktID() int {
	fe.numPckt += 1
	return fe.numPckt
}

// CreateForwardingEngine is a constructor
func CreateForwardingEngine(topo *Topology, sched *EventScheduler, tm *TraceManager, log *slog.Logger) *ForwardingEngine {
	fe := new(ForwardingEngine)
	fe.topo = topo
	fe.sched = sched
	fe.tm = tm
	fe.log = log
	return fe
}

// selectRoute picks the first candidate whose egress interface is up.  The
// candidate order is fixed by the lookup; this walk is the only place
// interface state is consulted.
func (fe *ForwardingEngine) selectRoute(node *Node, dst netip.Addr) (*Route, *Intrfc, dropReason) {
	candidates := node.rtable.LookupCandidates(dst)
	if len(candidates) == 0 {
		return nil, nil, DropNoRoute
	}
	for _, rt := range candidates {
		intrfc := node.intrfcs[rt.intrfcIdx]
		if intrfc.active && intrfc.link != nil {
			return rt, intrfc, DropNone
		}
	}
	return nil, nil, DropAllRoutesDown
}

// Forward carries the packet from srcNode to the node owning its
// destination address and reports the outcome.  Each relay step re-runs
// route selection at the node the packet sits on, so a link that died
// between two packets of the same stream diverts only the later one.
// Delivery to the destination's receive handler is scheduled at the time
// the accumulated path latency implies.
func (fe *ForwardingEngine) Forward(srcNode *Node, pckt *Packet) SendOutcome {
	here := srcNode
	latency := float64(0.0)
	path := []string{here.name}

	for hop := 0; ; hop++ {
		// the node owning the destination address absorbs the packet
		if here.ownsAddr(pckt.DstAddr) {
			fe.tm.AddPcktTrace(fe.sched.CurrentTime(), pckt.ID, here.id, "deliver", "")
			fe.sched.Schedule(here, pckt, pcktArrival, fe.sched.CurrentSeconds()+latency)
			return SendOutcome{Delivered: true, DstNode: here.name, Latency: latency, Path: path}
		}

		if hop >= hopLimit {
			fe.log.Warn("packet exceeded hop limit", "pckt", pckt.ID, "at", here.name,
				"dst", pckt.DstAddr.String())
			fe.tm.AddPcktTrace(fe.sched.CurrentTime(), pckt.ID, here.id, "drop", dropReasonToStr(DropHopLimit))
			return SendOutcome{Reason: DropHopLimit, Latency: latency, Path: path}
		}

		rt, egress, reason := fe.selectRoute(here, pckt.DstAddr)
		if rt == nil {
			fe.log.Info("packet dropped", "pckt", pckt.ID, "at", here.name,
				"dst", pckt.DstAddr.String(), "reason", dropReasonToStr(reason))
			fe.tm.AddPcktTrace(fe.sched.CurrentTime(), pckt.ID, here.id, "drop", dropReasonToStr(reason))
			return SendOutcome{Reason: reason, Latency: latency, Path: path}
		}

		// cross the link to the peer interface's node
		peer := egress.peer()
		fe.tm.AddPcktTrace(fe.sched.CurrentTime(), pckt.ID, egress.number, "exit", "")
		fe.tm.AddPcktTrace(fe.sched.CurrentTime(), pckt.ID, peer.number, "enter", "")
		latency += egress.link.latency

		here = peer.device
		path = append(path, here.name)
	}
}

// pcktArrival is the event handler for the arrival of a packet at the node
// owning its destination address
func pcktArrival(evtMgr *EventScheduler, context any, data any) any {
	node := context.(*Node)
	pckt := data.(*Packet)

	node.rcvd += 1
	if node.rcvFunc != nil {
		return node.rcvFunc(evtMgr, node, pckt)
	}
	return nil
}
