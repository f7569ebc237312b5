package wansim

// net.go contains the run-time representation of the simulated network:
// nodes, the interfaces embedded in them, and the point-to-point links that
// join interfaces on different nodes.  The structure built here is immutable
// once assembled; the only attribute that changes during a run is an
// interface's 'active' flag, and that only through the link-state
// controller's scheduled actions.

import (
	"fmt"
	"net/netip"
)

// A Node is a simulated network endpoint/router.  Its interfaces are held
// in an ordered list, and the position of an interface in that list is the
// index routes refer to.
type Node struct {
	name    string
	id      int
	intrfcs []*Intrfc
	rtable  *RoutingTable

	// called when a packet addressed to this node arrives; may be nil
	rcvFunc EventHandlerFunction

	rcvd int // count of packets delivered here
}

// Name returns the node's unique name
func (node *Node) Name() string {
	return node.name
}

// ID returns the node's unique integer id
func (node *Node) ID() int {
	return node.id
}

// Intrfcs returns the node's ordered interface list
func (node *Node) Intrfcs() []*Intrfc {
	return node.intrfcs
}

// RoutingTable returns the table owned by the node
func (node *Node) RoutingTable() *RoutingTable {
	return node.rtable
}

// SetRcvFunc installs the handler called when a packet addressed to the
// node is delivered
func (node *Node) SetRcvFunc(hdlr EventHandlerFunction) {
	node.rcvFunc = hdlr
}

// Received returns the number of packets delivered to the node so far
func (node *Node) Received() int {
	return node.rcvd
}

// ownsAddr indicates whether the destination address names one of the
// node's own interfaces
func (node *Node) ownsAddr(addr netip.Addr) bool {
	for _, intrfc := range node.intrfcs {
		if intrfc.addr == addr {
			return true
		}
	}
	return false
}

// An Intrfc is a node's attachment point to a link.  It carries an address
// within the network the link realizes, and an active/inactive flag that is
// initially true and is flipped (only) by the link-state controller.
type Intrfc struct {
	name    string       // unique name, generated from device and index
	number  int          // unique integer id
	device  *Node        // node the interface is embedded in
	index   int          // position in the device's interface list
	addr    netip.Addr   // address assigned to the interface
	network netip.Prefix // the network the interface faces
	link    *Link        // the link this interface terminates, nil until connected
	active  bool
}

// Name returns the interface name
func (intrfc *Intrfc) Name() string {
	return intrfc.name
}

// Device returns the node holding the interface
func (intrfc *Intrfc) Device() *Node {
	return intrfc.device
}

// Index returns the interface's position in its device's interface list
func (intrfc *Intrfc) Index() int {
	return intrfc.index
}

// Addr returns the address assigned to the interface
func (intrfc *Intrfc) Addr() netip.Addr {
	return intrfc.addr
}

// Network returns the network prefix the interface faces
func (intrfc *Intrfc) Network() netip.Prefix {
	return intrfc.network
}

// Active reports whether the interface is up
func (intrfc *Intrfc) Active() bool {
	return intrfc.active
}

// Link returns the link the interface terminates, nil if never connected
func (intrfc *Intrfc) Link() *Link {
	return intrfc.link
}

// peer returns the interface at the other end of the link this interface
// terminates, nil if the interface was never connected
func (intrfc *Intrfc) peer() *Intrfc {
	if intrfc.link == nil {
		return nil
	}
	if intrfc.link.endpts[0] == intrfc {
		return intrfc.link.endpts[1]
	}
	return intrfc.link.endpts[0]
}

// A Link is a point-to-point connection between exactly two interfaces on
// two distinct nodes.  Latency and bandwidth are carried for realism and
// reporting; neither enters into route selection.
type Link struct {
	number  int
	endpts  [2]*Intrfc
	latency float64 // propagation delay in seconds
	bndwdth float64 // bandwidth in Mbits/sec
}

// Latency returns the link's propagation delay in seconds
func (lnk *Link) Latency() float64 {
	return lnk.latency
}

// Bandwidth returns the link's bandwidth in Mbits/sec
func (lnk *Link) Bandwidth() float64 {
	return lnk.bndwdth
}

// Endpts returns the two interfaces terminating the link
func (lnk *Link) Endpts() (*Intrfc, *Intrfc) {
	return lnk.endpts[0], lnk.endpts[1]
}

// Topology owns the graph of nodes and links, and the lookup structures
// used to find its pieces by name, id, or address
type Topology struct {
	nodeByName   map[string]*Node
	nodeByID     map[int]*Node
	intrfcByID   map[int]*Intrfc
	intrfcByAddr map[netip.Addr]*Intrfc
	links        []*Link
	numIDs       int
}

// CreateTopology is a constructor
func CreateTopology() *Topology {
	topo := new(Topology)
	topo.nodeByName = make(map[string]*Node)
	topo.nodeByID = make(map[int]*Node)
	topo.intrfcByID = make(map[int]*Intrfc)
	topo.intrfcByAddr = make(map[netip.Addr]*Intrfc)
	topo.links = []*Link{}
	return topo
}

// nxtID generates integer ids unique within the topology
func (topo *Topology) nxtID() int {
	topo.numIDs += 1
	return topo.numIDs
}

// AddNode creates a node with the given name and adds it to the topology.
// Node names must be unique.
func (topo *Topology) AddNode(name string) (*Node, error) {
	_, present := topo.nodeByName[name]
	if present {
		return nil, topoErrorf("node name %s over-used in topology", name)
	}

	node := new(Node)
	node.name = name
	node.id = topo.nxtID()
	node.intrfcs = make([]*Intrfc, 0)
	node.rtable = createRoutingTable(node)

	topo.nodeByName[name] = node
	topo.nodeByID[node.id] = node
	return node, nil
}

// NodeByName looks up a node by its name
func (topo *Topology) NodeByName(name string) (*Node, bool) {
	node, present := topo.nodeByName[name]
	return node, present
}

// Nodes returns all nodes in the topology, indexed by id
func (topo *Topology) Nodes() map[int]*Node {
	return topo.nodeByID
}

// Links returns every link added to the topology
func (topo *Topology) Links() []*Link {
	return topo.links
}

// AddIntrfc embeds a new interface in the node, assigning it the address
// given in dotted form with the mask.  The assignment fails if the address
// or mask is malformed, or if the address is already bound anywhere in the
// topology.
func (topo *Topology) AddIntrfc(node *Node, addr string, mask string) (*Intrfc, error) {
	network, ipAddr, err := parseAddrMask(addr, mask)
	if err != nil {
		return nil, err
	}

	_, present := topo.intrfcByAddr[ipAddr]
	if present {
		return nil, topoErrorf("address %s already bound in topology", addr)
	}

	intrfc := new(Intrfc)
	intrfc.number = topo.nxtID()
	intrfc.device = node
	intrfc.index = len(node.intrfcs)
	intrfc.name = fmt.Sprintf("intrfc@%s[.%d]", node.name, intrfc.index)
	intrfc.addr = ipAddr
	intrfc.network = network
	intrfc.active = true

	node.intrfcs = append(node.intrfcs, intrfc)
	topo.intrfcByID[intrfc.number] = intrfc
	topo.intrfcByAddr[ipAddr] = intrfc
	return intrfc, nil
}

// ConnectIntrfcs joins two interfaces with a point-to-point link.  The
// connection fails if either interface is already bound to a link, if both
// interfaces live on the same node, or if the interfaces were addressed
// into different networks.  On success a connected (metric 0) route for the
// shared network is installed in each endpoint's routing table.
func (topo *Topology) ConnectIntrfcs(intrfc1, intrfc2 *Intrfc, latency, bndwdth float64) (*Link, error) {
	if intrfc1.link != nil {
		return nil, topoErrorf("interface %s already bound to a link", intrfc1.name)
	}
	if intrfc2.link != nil {
		return nil, topoErrorf("interface %s already bound to a link", intrfc2.name)
	}
	if intrfc1.device == intrfc2.device {
		return nil, topoErrorf("link endpoints %s and %s share node %s",
			intrfc1.name, intrfc2.name, intrfc1.device.name)
	}
	if intrfc1.network != intrfc2.network {
		return nil, topoErrorf("link endpoints %s and %s face different networks (%s vs %s)",
			intrfc1.name, intrfc2.name, intrfc1.network, intrfc2.network)
	}

	lnk := new(Link)
	lnk.number = topo.nxtID()
	lnk.endpts = [2]*Intrfc{intrfc1, intrfc2}
	lnk.latency = latency
	lnk.bndwdth = bndwdth

	intrfc1.link = lnk
	intrfc2.link = lnk
	topo.links = append(topo.links, lnk)

	// the shared network is now directly reachable from both endpoints
	intrfc1.device.rtable.addConnected(intrfc1.network, intrfc1.index)
	intrfc2.device.rtable.addConnected(intrfc2.network, intrfc2.index)

	return lnk, nil
}

// Peer resolves, for a node and one of its interface indices, the interface
// and node reachable across the attached link
func (topo *Topology) Peer(node *Node, intrfcIdx int) (*Intrfc, *Node, error) {
	if intrfcIdx < 0 || len(node.intrfcs) <= intrfcIdx {
		return nil, nil, topoErrorf("node %s has no interface %d", node.name, intrfcIdx)
	}
	peer := node.intrfcs[intrfcIdx].peer()
	if peer == nil {
		return nil, nil, topoErrorf("interface %s is not bound to a link", node.intrfcs[intrfcIdx].name)
	}
	return peer, peer.device, nil
}

// IntrfcByAddr finds the interface holding the given address, if any
func (topo *Topology) IntrfcByAddr(addr netip.Addr) (*Intrfc, bool) {
	intrfc, present := topo.intrfcByAddr[addr]
	return intrfc, present
}
