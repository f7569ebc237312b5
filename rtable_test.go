package wansim

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskBits(t *testing.T) {
	cases := []struct {
		mask string
		bits int
		ok   bool
	}{
		{"255.255.255.0", 24, true},
		{"255.255.0.0", 16, true},
		{"255.255.255.255", 32, true},
		{"0.0.0.0", 0, true},
		{"255.0.255.0", 0, false},
		{"255.255.255", 0, false},
		{"banana", 0, false},
	}
	for _, tc := range cases {
		bits, err := maskBits(tc.mask)
		if tc.ok {
			require.NoError(t, err, tc.mask)
			assert.Equal(t, tc.bits, bits, tc.mask)
		} else {
			assert.Error(t, err, tc.mask)
		}
	}
}

func TestMaskString(t *testing.T) {
	assert.Equal(t, "255.255.255.0", maskString(24))
	assert.Equal(t, "255.255.0.0", maskString(16))
	assert.Equal(t, "0.0.0.0", maskString(0))
	assert.Equal(t, "255.255.255.255", maskString(32))
}

func TestParseNetworkMask(t *testing.T) {
	t.Run("accepts a network address", func(t *testing.T) {
		pfx, err := parseNetworkMask("10.1.3.0", "255.255.255.0")
		require.NoError(t, err)
		assert.Equal(t, netip.MustParsePrefix("10.1.3.0/24"), pfx)
	})

	t.Run("rejects host bits", func(t *testing.T) {
		_, err := parseNetworkMask("10.1.3.7", "255.255.255.0")
		require.Error(t, err)
		var cfgErr *ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
	})
}

// twoIntrfcNode builds a node with interfaces on 10.1.1.0/24 and
// 10.1.2.0/24, each linked to a stub peer so connected routes exist
func twoIntrfcNode(t *testing.T) (*Topology, *Node) {
	t.Helper()
	topo := CreateTopology()
	node, err := topo.AddNode("HQ")
	require.NoError(t, err)
	peer1, err := topo.AddNode("peer1")
	require.NoError(t, err)
	peer2, err := topo.AddNode("peer2")
	require.NoError(t, err)

	for i, tc := range []struct {
		peer     *Node
		addr, pa string
	}{
		{peer1, "10.1.1.1", "10.1.1.2"},
		{peer2, "10.1.2.1", "10.1.2.2"},
	} {
		intrfc, err := topo.AddIntrfc(node, tc.addr, "255.255.255.0")
		require.NoError(t, err)
		pIntrfc, err := topo.AddIntrfc(tc.peer, tc.pa, "255.255.255.0")
		require.NoError(t, err)
		_, err = topo.ConnectIntrfcs(intrfc, pIntrfc, 0.002, 5.0e6)
		require.NoError(t, err, "link %d", i)
	}
	return topo, node
}

func TestAddRoute(t *testing.T) {
	t.Run("accepts primary and backup to the same network", func(t *testing.T) {
		_, node := twoIntrfcNode(t)
		rtbl := node.RoutingTable()
		require.NoError(t, rtbl.AddRoute("10.1.3.0", "255.255.255.0", "10.1.2.2", 1, 10))
		require.NoError(t, rtbl.AddRoute("10.1.3.0", "255.255.255.0", "10.1.1.2", 0, 20))
		assert.Len(t, rtbl.Routes(), 4) // two connected plus the two added
	})

	t.Run("rejects a duplicate tuple", func(t *testing.T) {
		_, node := twoIntrfcNode(t)
		rtbl := node.RoutingTable()
		require.NoError(t, rtbl.AddRoute("10.1.3.0", "255.255.255.0", "10.1.2.2", 1, 10))
		err := rtbl.AddRoute("10.1.3.0", "255.255.255.0", "10.1.2.2", 1, 99)
		require.Error(t, err)
		var cfgErr *ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("rejects an interface the node does not have", func(t *testing.T) {
		_, node := twoIntrfcNode(t)
		err := node.RoutingTable().AddRoute("10.1.3.0", "255.255.255.0", "10.1.2.2", 5, 10)
		assert.Error(t, err)
	})

	t.Run("rejects a malformed next hop", func(t *testing.T) {
		_, node := twoIntrfcNode(t)
		err := node.RoutingTable().AddRoute("10.1.3.0", "255.255.255.0", "not-an-addr", 1, 10)
		assert.Error(t, err)
	})
}

func TestLookupCandidates(t *testing.T) {
	t.Run("orders by metric then insertion", func(t *testing.T) {
		_, node := twoIntrfcNode(t)
		rtbl := node.RoutingTable()
		require.NoError(t, rtbl.AddRoute("10.1.3.0", "255.255.255.0", "10.1.1.2", 0, 20))
		require.NoError(t, rtbl.AddRoute("10.1.3.0", "255.255.255.0", "10.1.2.2", 1, 10))

		candidates := rtbl.LookupCandidates(netip.MustParseAddr("10.1.3.2"))
		require.Len(t, candidates, 2)
		assert.Equal(t, 10, candidates[0].Metric())
		assert.Equal(t, 1, candidates[0].IntrfcIdx())
		assert.Equal(t, 20, candidates[1].Metric())
		assert.Equal(t, 0, candidates[1].IntrfcIdx())
	})

	t.Run("equal metrics preserve insertion order", func(t *testing.T) {
		_, node := twoIntrfcNode(t)
		rtbl := node.RoutingTable()
		require.NoError(t, rtbl.AddRoute("10.1.3.0", "255.255.255.0", "10.1.2.2", 1, 10))
		require.NoError(t, rtbl.AddRoute("10.1.3.0", "255.255.255.0", "10.1.1.2", 0, 10))

		candidates := rtbl.LookupCandidates(netip.MustParseAddr("10.1.3.2"))
		require.Len(t, candidates, 2)
		assert.Equal(t, 1, candidates[0].IntrfcIdx())
		assert.Equal(t, 0, candidates[1].IntrfcIdx())
	})

	t.Run("a longer prefix excludes shorter matches", func(t *testing.T) {
		_, node := twoIntrfcNode(t)
		rtbl := node.RoutingTable()
		require.NoError(t, rtbl.AddRoute("10.1.0.0", "255.255.0.0", "10.1.1.2", 0, 1))
		require.NoError(t, rtbl.AddRoute("10.1.3.0", "255.255.255.0", "10.1.2.2", 1, 50))

		candidates := rtbl.LookupCandidates(netip.MustParseAddr("10.1.3.2"))
		require.Len(t, candidates, 1)
		assert.Equal(t, netip.MustParsePrefix("10.1.3.0/24"), candidates[0].Network())

		// an address outside the /24 still matches the /16
		candidates = rtbl.LookupCandidates(netip.MustParseAddr("10.1.9.9"))
		require.Len(t, candidates, 1)
		assert.Equal(t, netip.MustParsePrefix("10.1.0.0/16"), candidates[0].Network())
	})

	t.Run("no match returns empty", func(t *testing.T) {
		_, node := twoIntrfcNode(t)
		candidates := node.RoutingTable().LookupCandidates(netip.MustParseAddr("192.168.1.1"))
		assert.Empty(t, candidates)
	})

	t.Run("connected routes precede statics on their network", func(t *testing.T) {
		_, node := twoIntrfcNode(t)
		rtbl := node.RoutingTable()
		require.NoError(t, rtbl.AddRoute("10.1.1.0", "255.255.255.0", "10.1.2.2", 1, 10))

		candidates := rtbl.LookupCandidates(netip.MustParseAddr("10.1.1.2"))
		require.Len(t, candidates, 2)
		assert.True(t, candidates[0].Connected())
		assert.Equal(t, 0, candidates[0].Metric())
	})
}
