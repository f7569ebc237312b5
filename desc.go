package wansim

// desc.go holds the serializable description of an experiment scenario.
// A ScenarioCfg is the on-file form: nodes, links with their endpoint
// addresses, static routes, scheduled failures, traffic generators, and
// requested routing table dumps.  BuildExperiment turns one into a runnable
// Experiment, gathering every configuration complaint rather than stopping
// at the first.

import (
	"encoding/json"
	"log/slog"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// LinkDesc describes one point-to-point link.  Interfaces are created
// implicitly, one on each endpoint node, numbered in the order the links
// are listed.
type LinkDesc struct {
	Node1   string  `json:"node1" yaml:"node1"`
	Addr1   string  `json:"addr1" yaml:"addr1"`
	Node2   string  `json:"node2" yaml:"node2"`
	Addr2   string  `json:"addr2" yaml:"addr2"`
	Mask    string  `json:"mask" yaml:"mask"`
	Latency float64 `json:"latency" yaml:"latency"`
	Bndwdth float64 `json:"bndwdth" yaml:"bndwdth"`
}

// RouteDesc describes one static route on one node
type RouteDesc struct {
	Node      string `json:"node" yaml:"node"`
	Network   string `json:"network" yaml:"network"`
	Mask      string `json:"mask" yaml:"mask"`
	NxtHop    string `json:"nxthop" yaml:"nxthop"`
	IntrfcIdx int    `json:"intrfcidx" yaml:"intrfcidx"`
	Metric    int    `json:"metric" yaml:"metric"`
}

// FailureDesc describes one scheduled interface failure
type FailureDesc struct {
	Time      float64 `json:"time" yaml:"time"`
	Node      string  `json:"node" yaml:"node"`
	IntrfcIdx int     `json:"intrfcidx" yaml:"intrfcidx"`
}

// TrafficDesc describes one periodic traffic generator
type TrafficDesc struct {
	Name       string  `json:"name" yaml:"name"`
	Src        string  `json:"src" yaml:"src"`
	DstAddr    string  `json:"dstaddr" yaml:"dstaddr"`
	Start      float64 `json:"start" yaml:"start"`
	Interval   float64 `json:"interval" yaml:"interval"`
	MaxPackets int     `json:"maxpackets" yaml:"maxpackets"`
	PcktLen    int     `json:"pcktlen" yaml:"pcktlen"`
	Jitter     float64 `json:"jitter" yaml:"jitter"`
}

// DumpDesc describes one scheduled routing table dump
type DumpDesc struct {
	Time float64 `json:"time" yaml:"time"`
	Node string  `json:"node" yaml:"node"`
}

// ScenarioCfg is the top-level description of an experiment
type ScenarioCfg struct {
	Name     string        `json:"name" yaml:"name"`
	StopTime float64       `json:"stoptime" yaml:"stoptime"`
	Nodes    []string      `json:"nodes" yaml:"nodes"`
	Links    []LinkDesc    `json:"links" yaml:"links"`
	Routes   []RouteDesc   `json:"routes" yaml:"routes"`
	Failures []FailureDesc `json:"failures" yaml:"failures"`
	Traffic  []TrafficDesc `json:"traffic" yaml:"traffic"`
	Dumps    []DumpDesc    `json:"dumps" yaml:"dumps"`
}

// WriteToFile stores the ScenarioCfg struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (cfg *ScenarioCfg) WriteToFile(filename string) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(*cfg)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(*cfg, "", "\t")
	}

	if merr != nil {
		panic(merr)
	}

	f, cerr := os.Create(filename)
	if cerr != nil {
		panic(cerr)
	}
	_, werr := f.WriteString(string(bytes[:]))
	if werr != nil {
		panic(werr)
	}
	f.Close()

	return werr
}

// ReadScenarioCfg deserializes a byte slice holding a representation of a
// ScenarioCfg struct.  If the input argument of dict (those bytes) is empty,
// the file whose name is given is read to acquire them.  A deserialized
// representation is returned, or an error if one is generated from a file
// read or the deserialization.
func ReadScenarioCfg(filename string, useYAML bool, dict []byte) (*ScenarioCfg, error) {
	var err error

	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	example := ScenarioCfg{}

	if useYAML {
		err = yaml.Unmarshal(dict, &example)
	} else {
		err = json.Unmarshal(dict, &example)
	}

	if err != nil {
		return nil, err
	}

	return &example, nil
}

// BuildExperiment turns a scenario description into a runnable Experiment.
// Every descriptor is applied; complaints are gathered so the caller sees
// all of them at once.
func (cfg *ScenarioCfg) BuildExperiment(log *slog.Logger, traceOn bool) (*Experiment, error) {
	errList := []error{}
	expt := CreateExperiment(cfg.Name, log, traceOn)

	for _, nodeName := range cfg.Nodes {
		err := expt.AddNode(nodeName)
		if err != nil {
			errList = append(errList, err)
		}
	}

	for _, link := range cfg.Links {
		err := expt.AddLink(link.Node1, link.Addr1, link.Node2, link.Addr2,
			link.Mask, link.Latency, link.Bndwdth)
		if err != nil {
			errList = append(errList, err)
		}
	}

	for _, rt := range cfg.Routes {
		err := expt.AddRoute(rt.Node, rt.Network, rt.Mask, rt.NxtHop, rt.IntrfcIdx, rt.Metric)
		if err != nil {
			errList = append(errList, err)
		}
	}

	for _, fd := range cfg.Failures {
		err := expt.ScheduleFailure(fd.Time, fd.Node, fd.IntrfcIdx)
		if err != nil {
			errList = append(errList, err)
		}
	}

	for _, td := range cfg.Traffic {
		_, err := expt.AddTraffic(td.Name, td.Src, td.DstAddr, td.Start,
			td.Interval, td.MaxPackets, td.PcktLen, td.Jitter)
		if err != nil {
			errList = append(errList, err)
		}
	}

	for _, dd := range cfg.Dumps {
		err := expt.ScheduleRoutingTableDump(dd.Time, dd.Node)
		if err != nil {
			errList = append(errList, err)
		}
	}

	return expt, ReportErrs(errList)
}
