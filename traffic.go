package wansim

// traffic.go implements a periodic packet source.  A generator emits a
// fixed number of fixed-size packets at a fixed interval from one node
// toward one destination address, collecting the outcome of each send.
// The outcomes are what the experiment's reports are built from.

import (
	"net/netip"

	"github.com/iti/rngstream"
)

// A TrafficGenerator schedules its own sends.  Each firing performs one
// send through the forwarding engine and, if packets remain, schedules the
// next firing one interval later.
type TrafficGenerator struct {
	Name       string
	SrcNode    string     // name of the node that originates the packets
	DstAddr    netip.Addr // destination interface address
	Start      float64    // time of the first send
	Interval   float64    // seconds between sends
	MaxPackets int        // total number of packets to emit
	PcktLen    int        // payload size in bytes
	Jitter     float64    // max random offset added to each send time

	fe   *ForwardingEngine
	src  *Node
	rng  *rngstream.RngStream
	sent int

	outcomes []SendOutcome
}

// CreateTrafficGenerator is a constructor.  The source node is resolved at
// creation so a misnamed node is caught before the run starts.
func CreateTrafficGenerator(name string, topo *Topology, fe *ForwardingEngine,
	srcNode, dstAddr string, start, interval float64, maxPckts, pcktLen int, jitter float64) (*TrafficGenerator, error) {

	src, present := topo.nodeByName[srcNode]
	if !present {
		return nil, cfgErrorf("traffic generator %s names unknown source node %s", name, srcNode)
	}
	dst, err := netip.ParseAddr(dstAddr)
	if err != nil {
		return nil, cfgErrorf("traffic generator %s has malformed destination address %s", name, dstAddr)
	}
	if interval <= 0.0 && maxPckts > 1 {
		return nil, cfgErrorf("traffic generator %s needs a positive interval", name)
	}

	tg := new(TrafficGenerator)
	tg.Name = name
	tg.SrcNode = srcNode
	tg.DstAddr = dst
	tg.Start = start
	tg.Interval = interval
	tg.MaxPackets = maxPckts
	tg.PcktLen = pcktLen
	tg.Jitter = jitter
	tg.fe = fe
	tg.src = src
	tg.rng = rngstream.New(name)
	tg.outcomes = make([]SendOutcome, 0)
	return tg, nil
}

// Begin schedules the generator's first send
func (tg *TrafficGenerator) Begin(sched *EventScheduler) error {
	if tg.MaxPackets == 0 {
		return nil
	}
	return sched.Schedule(tg, nil, tgSend, tg.Start+tg.offset())
}

// offset draws the jitter offset for one send
func (tg *TrafficGenerator) offset() float64 {
	if tg.Jitter == 0.0 {
		return 0.0
	}
	return tg.Jitter * tg.rng.RandU01()
}

// Outcomes returns the outcomes of the sends performed so far, in send order
func (tg *TrafficGenerator) Outcomes() []SendOutcome {
	return tg.outcomes
}

// Delivered counts the outcomes that reached their destination
func (tg *TrafficGenerator) Delivered() int {
	count := 0
	for _, oc := range tg.outcomes {
		if oc.Delivered {
			count += 1
		}
	}
	return count
}

// Dropped counts the outcomes with the given drop reason
func (tg *TrafficGenerator) Dropped(reason dropReason) int {
	count := 0
	for _, oc := range tg.outcomes {
		if !oc.Delivered && oc.Reason == reason {
			count += 1
		}
	}
	return count
}

// tgSend is the event handler for a generator firing.  It performs one send
// and reschedules itself until the packet budget is exhausted.
func tgSend(evtMgr *EventScheduler, context any, data any) any {
	tg := context.(*TrafficGenerator)
	fe := tg.fe

	pckt := new(Packet)
	pckt.ID = fe.nxtPcktID()
	pckt.SrcNode = tg.src.name
	pckt.DstAddr = tg.DstAddr
	pckt.MsgLen = tg.PcktLen
	pckt.Created = evtMgr.CurrentSeconds()

	fe.tm.AddPcktTrace(evtMgr.CurrentTime(), pckt.ID, tg.src.id, "send", "")
	oc := fe.Forward(tg.src, pckt)
	tg.outcomes = append(tg.outcomes, oc)
	tg.sent += 1

	fe.log.Debug("generator send", "gen", tg.Name, "pckt", pckt.ID,
		"delivered", oc.Delivered, "path", oc.PathString())

	if tg.sent < tg.MaxPackets {
		evtMgr.Schedule(tg, nil, tgSend, evtMgr.CurrentSeconds()+tg.Interval+tg.offset())
	}
	return nil
}
