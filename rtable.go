package wansim

// rtable.go holds per-node routing state: the Route records configured at
// setup time and the lookup that orders candidate routes for a destination.
// Tables are not kept sorted; ordering by preference happens at lookup time,
// the same way parameter precedence ordering is deferred to application time
// elsewhere in this package's lineage.

import (
	"math/bits"
	"net/netip"

	"golang.org/x/exp/slices"
)

// maskBits converts a dotted-quad mask to its prefix length, rejecting
// masks whose set bits are not contiguous from the top
func maskBits(mask string) (int, error) {
	mAddr, err := netip.ParseAddr(mask)
	if err != nil || !mAddr.Is4() {
		return 0, cfgErrorf("malformed mask %s", mask)
	}
	m4 := mAddr.As4()
	m := uint32(m4[0])<<24 | uint32(m4[1])<<16 | uint32(m4[2])<<8 | uint32(m4[3])
	ones := bits.OnesCount32(m)
	if ones > 0 && m != ^uint32(0)<<(32-ones) {
		return 0, cfgErrorf("mask %s is not a prefix mask", mask)
	}
	return ones, nil
}

// maskString renders a prefix length as a dotted-quad mask, for reports
func maskString(numBits int) string {
	var m uint32
	if numBits > 0 {
		m = ^uint32(0) << (32 - numBits)
	}
	a := netip.AddrFrom4([4]byte{byte(m >> 24), byte(m >> 16), byte(m >> 8), byte(m)})
	return a.String()
}

// parseAddrMask parses an interface address with its mask, returning the
// network the address lives in and the address itself
func parseAddrMask(addr string, mask string) (netip.Prefix, netip.Addr, error) {
	ipAddr, err := netip.ParseAddr(addr)
	if err != nil || !ipAddr.Is4() {
		return netip.Prefix{}, netip.Addr{}, cfgErrorf("malformed address %s", addr)
	}
	numBits, err := maskBits(mask)
	if err != nil {
		return netip.Prefix{}, netip.Addr{}, err
	}
	network := netip.PrefixFrom(ipAddr, numBits).Masked()
	return network, ipAddr, nil
}

// parseNetworkMask parses a destination network with its mask.  Unlike an
// interface address, a network address may not have host bits set.
func parseNetworkMask(network string, mask string) (netip.Prefix, error) {
	netAddr, err := netip.ParseAddr(network)
	if err != nil || !netAddr.Is4() {
		return netip.Prefix{}, cfgErrorf("malformed network address %s", network)
	}
	numBits, err := maskBits(mask)
	if err != nil {
		return netip.Prefix{}, err
	}
	pfx := netip.PrefixFrom(netAddr, numBits)
	if pfx.Masked().Addr() != netAddr {
		return netip.Prefix{}, cfgErrorf("network %s has host bits set under mask %s", network, mask)
	}
	return pfx, nil
}

// A Route is one configured path toward a destination network.  Identity is
// the (network, mask, next hop, interface) tuple; several routes may share
// a destination network with different metrics, which is how a
// primary/backup pair is expressed.
type Route struct {
	network   netip.Prefix
	nxtHop    netip.Addr // zero value for connected routes
	intrfcIdx int        // egress interface index on the owning node
	metric    int        // lower is preferred
	seq       int        // insertion order, breaks metric ties
	connected bool       // installed automatically when a link was attached
}

// Network returns the route's destination network
func (rt *Route) Network() netip.Prefix {
	return rt.network
}

// NxtHop returns the route's next-hop address (zero for connected routes)
func (rt *Route) NxtHop() netip.Addr {
	return rt.nxtHop
}

// IntrfcIdx returns the egress interface index the route names
func (rt *Route) IntrfcIdx() int {
	return rt.intrfcIdx
}

// Metric returns the route's preference value, lower preferred
func (rt *Route) Metric() int {
	return rt.metric
}

// Connected reports whether the route was installed by link attachment
// rather than configuration
func (rt *Route) Connected() bool {
	return rt.connected
}

// A RoutingTable belongs to exactly one node and holds its configured
// routes in insertion order
type RoutingTable struct {
	node   *Node
	routes []*Route
	nxtSeq int
}

// createRoutingTable is a constructor, called when the owning node is built
func createRoutingTable(node *Node) *RoutingTable {
	rtbl := new(RoutingTable)
	rtbl.node = node
	rtbl.routes = []*Route{}
	return rtbl
}

// Routes returns the table's routes in insertion order
func (rtbl *RoutingTable) Routes() []*Route {
	return rtbl.routes
}

// AddRoute inserts a route toward the network described in dotted form.
// The insertion fails if the network or mask is malformed, if the network
// has host bits set, if the interface index does not name an interface on
// the owning node, or if the (network, mask, next hop, interface) tuple
// duplicates a route already present.
func (rtbl *RoutingTable) AddRoute(network, mask, nxtHop string, intrfcIdx, metric int) error {
	pfx, err := parseNetworkMask(network, mask)
	if err != nil {
		return err
	}
	hop, err := netip.ParseAddr(nxtHop)
	if err != nil || !hop.Is4() {
		return cfgErrorf("malformed next-hop address %s", nxtHop)
	}
	if intrfcIdx < 0 || len(rtbl.node.intrfcs) <= intrfcIdx {
		return cfgErrorf("node %s has no interface %d", rtbl.node.name, intrfcIdx)
	}
	for _, rt := range rtbl.routes {
		if rt.network == pfx && rt.nxtHop == hop && rt.intrfcIdx == intrfcIdx {
			return cfgErrorf("duplicate route to %s via %s on interface %d of node %s",
				pfx, nxtHop, intrfcIdx, rtbl.node.name)
		}
	}

	rtbl.insert(&Route{network: pfx, nxtHop: hop, intrfcIdx: intrfcIdx, metric: metric})
	return nil
}

// addConnected installs the metric-0 route for a network an interface was
// just linked into
func (rtbl *RoutingTable) addConnected(network netip.Prefix, intrfcIdx int) {
	rtbl.insert(&Route{network: network, intrfcIdx: intrfcIdx, metric: 0, connected: true})
}

func (rtbl *RoutingTable) insert(rt *Route) {
	rt.seq = rtbl.nxtSeq
	rtbl.nxtSeq += 1
	rtbl.routes = append(rtbl.routes, rt)
}

// LookupCandidates returns the routes considered for a packet addressed to
// dst, in the order the forwarding engine must try them.  Only routes whose
// network contains dst are considered, only those sharing the longest
// matching mask length survive, and the survivors are ordered by ascending
// metric with ties preserving insertion order.  The returned order is fixed
// here; interface state plays no part in it.
func (rtbl *RoutingTable) LookupCandidates(dst netip.Addr) []*Route {
	matched := []*Route{}
	longest := -1
	for _, rt := range rtbl.routes {
		if !rt.network.Contains(dst) {
			continue
		}
		matched = append(matched, rt)
		if longest < rt.network.Bits() {
			longest = rt.network.Bits()
		}
	}

	candidates := []*Route{}
	for _, rt := range matched {
		if rt.network.Bits() == longest {
			candidates = append(candidates, rt)
		}
	}

	slices.SortFunc(candidates, func(a, b *Route) int {
		if a.metric != b.metric {
			return a.metric - b.metric
		}
		return a.seq - b.seq
	})

	return candidates
}
