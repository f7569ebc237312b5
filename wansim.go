// Package wansim implements a discrete-event simulator of small
// wide-area networks.  A topology of nodes joined by point-to-point links
// carries packets under static routing with per-route metrics; interfaces
// can be scheduled to fail mid-run, and forwarding re-selects a route for
// every packet at the moment it is sent, so surviving routes take over
// without any protocol convergence.
package wansim

import (
	"fmt"
	"log/slog"
	"net/netip"

	"golang.org/x/exp/slices"
)

// sendReq carries the parameters of a deferred send through the scheduler
type sendReq struct {
	srcNode *Node
	dstAddr netip.Addr
	msgLen  int
}

// A RouteDump is the rendered form of one route, as reported by a routing
// table dump.  Active reflects the state of the route's egress interface at
// the moment of the dump.
type RouteDump struct {
	Network   string `json:"network" yaml:"network"`
	Mask      string `json:"mask" yaml:"mask"`
	NxtHop    string `json:"nxthop" yaml:"nxthop"`
	IntrfcIdx int    `json:"intrfcidx" yaml:"intrfcidx"`
	Metric    int    `json:"metric" yaml:"metric"`
	Connected bool   `json:"connected" yaml:"connected"`
	Active    bool   `json:"active" yaml:"active"`
}

// A RecordedDump is one routing table dump taken during a run
type RecordedDump struct {
	Time   float64
	Node   string
	Routes []RouteDump
}

// An Experiment assembles a topology, a scheduler, and the controllers
// that act on them, and exposes the operations a scenario is written in
// terms of
type Experiment struct {
	Name  string
	topo  *Topology
	sched *EventScheduler
	tm    *TraceManager
	fe    *ForwardingEngine
	lsc   *LinkStateController
	log   *slog.Logger

	gens     []*TrafficGenerator
	outcomes []SendOutcome  // outcomes of one-shot sends, in completion order
	dumps    []RecordedDump // routing table dumps, in time order
}

// CreateExperiment is a constructor
func CreateExperiment(name string, log *slog.Logger, traceOn bool) *Experiment {
	expt := new(Experiment)
	expt.Name = name
	expt.log = log
	expt.topo = CreateTopology()
	expt.sched = CreateEventScheduler()
	expt.tm = CreateTraceManager(name, traceOn)
	expt.fe = CreateForwardingEngine(expt.topo, expt.sched, expt.tm, log)
	expt.lsc = CreateLinkStateController(expt.topo, expt.sched, expt.tm, log)
	expt.gens = []*TrafficGenerator{}
	expt.outcomes = []SendOutcome{}
	expt.dumps = []RecordedDump{}
	return expt
}

// Topology exposes the experiment's topology
func (expt *Experiment) Topology() *Topology {
	return expt.topo
}

// Scheduler exposes the experiment's event scheduler
func (expt *Experiment) Scheduler() *EventScheduler {
	return expt.sched
}

// AddNode creates a node with no interfaces
func (expt *Experiment) AddNode(name string) error {
	node, err := expt.topo.AddNode(name)
	if err != nil {
		return err
	}
	expt.tm.AddName(node.id, name, "node")
	return nil
}

// AddLink creates an interface on each of two nodes and joins them with a
// point-to-point link.  The two addresses must lie in the same network
// under the given mask.  Interface indices accrue per node in the order
// AddLink calls are made.
func (expt *Experiment) AddLink(node1, addr1, node2, addr2, mask string,
	latency, bndwdth float64) error {

	n1, present := expt.topo.NodeByName(node1)
	if !present {
		return topoErrorf("link endpoint names unknown node %s", node1)
	}
	n2, present := expt.topo.NodeByName(node2)
	if !present {
		return topoErrorf("link endpoint names unknown node %s", node2)
	}

	intrfc1, err := expt.topo.AddIntrfc(n1, addr1, mask)
	if err != nil {
		return err
	}
	intrfc2, err := expt.topo.AddIntrfc(n2, addr2, mask)
	if err != nil {
		return err
	}
	_, err = expt.topo.ConnectIntrfcs(intrfc1, intrfc2, latency, bndwdth)
	if err != nil {
		return err
	}
	expt.tm.AddName(intrfc1.number, intrfc1.name, "intrfc")
	expt.tm.AddName(intrfc2.number, intrfc2.name, "intrfc")
	return nil
}

// AddRoute installs a static route on the named node
func (expt *Experiment) AddRoute(nodeName, network, mask, nxtHop string,
	intrfcIdx, metric int) error {

	node, present := expt.topo.NodeByName(nodeName)
	if !present {
		return cfgErrorf("route names unknown node %s", nodeName)
	}
	return node.rtable.AddRoute(network, mask, nxtHop, intrfcIdx, metric)
}

// ScheduleFailure arranges for the named node's interface to go down at
// the given simulation time
func (expt *Experiment) ScheduleFailure(time float64, nodeName string, intrfcIdx int) error {
	return expt.lsc.ScheduleFailure(time, nodeName, intrfcIdx)
}

// AddTraffic creates a periodic traffic generator and schedules its first
// send
func (expt *Experiment) AddTraffic(name, src, dstAddr string, start, interval float64,
	maxPckts, pcktLen int, jitter float64) (*TrafficGenerator, error) {

	if slices.ContainsFunc(expt.gens, func(tg *TrafficGenerator) bool { return tg.Name == name }) {
		return nil, cfgErrorf("traffic generator name %s over-used in experiment", name)
	}
	tg, err := CreateTrafficGenerator(name, expt.topo, expt.fe, src, dstAddr,
		start, interval, maxPckts, pcktLen, jitter)
	if err != nil {
		return nil, err
	}
	err = tg.Begin(expt.sched)
	if err != nil {
		return nil, err
	}
	expt.gens = append(expt.gens, tg)
	return tg, nil
}

// Generators returns the experiment's traffic generators, in creation order
func (expt *Experiment) Generators() []*TrafficGenerator {
	return expt.gens
}

// Send emits one packet from the named node toward the given address at
// the current simulation time and reports its outcome.  A drop is part of
// the outcome, not an error; the error return flags only malformed
// arguments.
func (expt *Experiment) Send(srcNode, dstAddr string, msgLen int) (SendOutcome, error) {
	src, present := expt.topo.NodeByName(srcNode)
	if !present {
		return SendOutcome{}, cfgErrorf("send names unknown source node %s", srcNode)
	}
	dst, err := netip.ParseAddr(dstAddr)
	if err != nil {
		return SendOutcome{}, cfgErrorf("send has malformed destination address %s", dstAddr)
	}
	return expt.send(src, dst, msgLen), nil
}

// send runs one packet through the forwarding engine
func (expt *Experiment) send(src *Node, dst netip.Addr, msgLen int) SendOutcome {
	pckt := new(Packet)
	pckt.ID = expt.fe.nxtPcktID()
	pckt.SrcNode = src.name
	pckt.DstAddr = dst
	pckt.MsgLen = msgLen
	pckt.Created = expt.sched.CurrentSeconds()

	expt.tm.AddPcktTrace(expt.sched.CurrentTime(), pckt.ID, src.id, "send", "")
	oc := expt.fe.Forward(src, pckt)
	expt.outcomes = append(expt.outcomes, oc)
	return oc
}

// ScheduleSend arranges for one packet to be sent at the given simulation
// time.  The outcome lands in Outcomes once the run reaches that time.
func (expt *Experiment) ScheduleSend(time float64, srcNode, dstAddr string, msgLen int) error {
	src, present := expt.topo.NodeByName(srcNode)
	if !present {
		return cfgErrorf("send names unknown source node %s", srcNode)
	}
	dst, err := netip.ParseAddr(dstAddr)
	if err != nil {
		return cfgErrorf("send has malformed destination address %s", dstAddr)
	}
	req := &sendReq{srcNode: src, dstAddr: dst, msgLen: msgLen}
	return expt.sched.Schedule(expt, req, exptSend, time)
}

// Outcomes returns the outcomes of one-shot sends performed so far
func (expt *Experiment) Outcomes() []SendOutcome {
	return expt.outcomes
}

// exptSend is the event handler for a deferred one-shot send
func exptSend(evtMgr *EventScheduler, context any, data any) any {
	expt := context.(*Experiment)
	req := data.(*sendReq)
	expt.send(req.srcNode, req.dstAddr, req.msgLen)
	return nil
}

// DumpRoutingTable renders the named node's routing table, connected
// routes included, in the same order forwarding considers them within a
// prefix.  The Active flag on each line reflects the egress interface's
// state right now.
func (expt *Experiment) DumpRoutingTable(nodeName string) ([]RouteDump, error) {
	node, present := expt.topo.NodeByName(nodeName)
	if !present {
		return nil, cfgErrorf("dump names unknown node %s", nodeName)
	}
	return expt.dumpTable(node), nil
}

func (expt *Experiment) dumpTable(node *Node) []RouteDump {
	dump := make([]RouteDump, 0, len(node.rtable.routes))
	for _, rt := range node.rtable.routes {
		intrfc := node.intrfcs[rt.intrfcIdx]
		rd := RouteDump{
			Network:   rt.network.Addr().String(),
			Mask:      maskString(rt.network.Bits()),
			IntrfcIdx: rt.intrfcIdx,
			Metric:    rt.metric,
			Connected: rt.connected,
			Active:    intrfc.active,
		}
		if rt.nxtHop.IsValid() {
			rd.NxtHop = rt.nxtHop.String()
		}
		dump = append(dump, rd)
	}
	return dump
}

// ScheduleRoutingTableDump arranges for the named node's routing table to
// be rendered and recorded at the given simulation time
func (expt *Experiment) ScheduleRoutingTableDump(time float64, nodeName string) error {
	node, present := expt.topo.NodeByName(nodeName)
	if !present {
		return cfgErrorf("dump names unknown node %s", nodeName)
	}
	return expt.sched.Schedule(expt, node, exptDump, time)
}

// Dumps returns the routing table dumps recorded so far, in time order
func (expt *Experiment) Dumps() []RecordedDump {
	return expt.dumps
}

// exptDump is the event handler for a scheduled routing table dump
func exptDump(evtMgr *EventScheduler, context any, data any) any {
	expt := context.(*Experiment)
	node := data.(*Node)

	dump := expt.dumpTable(node)
	rendered := make([]string, 0, len(dump))
	for _, rd := range dump {
		state := "up"
		if !rd.Active {
			state = "down"
		}
		via := rd.NxtHop
		if via == "" {
			via = "direct"
		}
		line := fmt.Sprintf("%s/%s via %s if%d metric %d %s",
			rd.Network, rd.Mask, via, rd.IntrfcIdx, rd.Metric, state)
		rendered = append(rendered, line)
		expt.log.Info("route", "time", evtMgr.CurrentSeconds(), "node", node.name, "entry", line)
	}
	expt.tm.AddDumpTrace(evtMgr.CurrentTime(), node.id, rendered)
	expt.dumps = append(expt.dumps, RecordedDump{
		Time: evtMgr.CurrentSeconds(), Node: node.name, Routes: dump})
	return nil
}

// Run checks that the topology is physically connected and then executes
// scheduled events in time order until none remain at or before stopTime
func (expt *Experiment) Run(stopTime float64) error {
	err := CheckConnectivity(expt.topo)
	if err != nil {
		return err
	}
	expt.log.Info("run starting", "expt", expt.Name, "stop", stopTime)
	expt.sched.Run(stopTime)
	expt.log.Info("run complete", "expt", expt.Name, "time", expt.sched.CurrentSeconds())
	return nil
}

// WriteTrace stores the gathered trace to the named file, serialized as
// yaml or json by the file's extension
func (expt *Experiment) WriteTrace(filename string) bool {
	return expt.tm.WriteToFile(filename)
}
