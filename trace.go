package wansim

import (
	"encoding/json"
	"github.com/iti/evt/vrtime"
	"gopkg.in/yaml.v3"
	"os"
	"path"
	"strconv"
)

type TraceRecordType int

const (
	PcktType TraceRecordType = iota
	LinkType
	DumpType
)

var trtToStr map[TraceRecordType]string = map[TraceRecordType]string{PcktType: "pckt", LinkType: "link", DumpType: "dump"}

type TraceInst struct {
	TraceTime string
	TraceType string
	TraceStr  string
}

// NameType is an entry in a dictionary created for a trace
// that maps object id numbers to a (name,type) pair
type NameType struct {
	Name string
	Type string
}

// TraceManager gathers information about an experiment and an execution
// of that experiment
type TraceManager struct {
	// experiment uses trace
	InUse bool `json:"inuse" yaml:"inuse"`

	// name of experiment
	ExpName string `json:"expname" yaml:"expname"`

	// text name associated with each objID
	NameByID map[int]NameType `json:"namebyid" yaml:"namebyid"`

	// all trace records for this experiment, keyed by packet id
	// (or object id for records not tied to a packet)
	Traces map[int][]TraceInst `json:"traces" yaml:"traces"`
}

// CreateTraceManager is a constructor.  It saves the name of the experiment
// and a flag indicating whether the trace manager is active.  By testing this
// flag we can inhibit the activity of gathering a trace when we don't want it,
// while embedding calls to its methods everywhere we need them when it is
func CreateTraceManager(ExpName string, active bool) *TraceManager {
	tm := new(TraceManager)
	tm.InUse = active
	tm.ExpName = ExpName
	tm.NameByID = make(map[int]NameType)
	tm.Traces = make(map[int][]TraceInst)
	return tm
}

// Active tells the caller whether the Trace Manager is actively being used
func (tm *TraceManager) Active() bool {
	return tm.InUse
}

// AddTrace creates a record of the trace using its calling arguments, and stores it
func (tm *TraceManager) AddTrace(vrt vrtime.Time, key int, trace TraceInst) {

	// return if we aren't using the trace manager
	if !tm.InUse {
		return
	}

	_, present := tm.Traces[key]
	if !present {
		tm.Traces[key] = make([]TraceInst, 0)
	}
	tm.Traces[key] = append(tm.Traces[key], trace)
}

// AddName is used to add an element to the id -> (name,type) dictionary for the trace file
func (tm *TraceManager) AddName(id int, name string, objDesc string) {
	if tm.InUse {
		_, present := tm.NameByID[id]
		if present {
			panic("duplicated id in AddName")
		}
		tm.NameByID[id] = NameType{Name: name, Type: objDesc}
	}
}

// WriteToFile stores the Traces struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (tm *TraceManager) WriteToFile(filename string) bool {
	if !tm.InUse {
		return false
	}
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(*tm)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(*tm, "", "\t")
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
	return true
}

// PcktTrace saves information about the visitation of a packet to some
// point in the simulation, for post-run analysis
type PcktTrace struct {
	Time     float64 // time in float64
	Ticks    int64   // ticks variable of time
	Priority int64   // priority field of time-stamp
	PcktID   int     // integer identifier of the packet
	ObjID    int     // integer id for node or interface being referenced
	Op       string  // "send", "enter", "exit", "deliver", "drop"
	Reason   string  // drop reason, empty otherwise
}

func (pt *PcktTrace) TraceType() TraceRecordType {
	return PcktType
}

func (pt *PcktTrace) Serialize() string {
	bytes, merr := yaml.Marshal(*pt)
	if merr != nil {
		panic(merr)
	}
	return string(bytes[:])
}

// AddPcktTrace creates a record of a packet's visit to an object, and stores it
func (tm *TraceManager) AddPcktTrace(vrt vrtime.Time, pcktID int, objID int, op string, reason string) {
	if !tm.InUse {
		return
	}
	pt := new(PcktTrace)
	pt.Time = vrt.Seconds()
	pt.Ticks = vrt.Ticks()
	pt.Priority = vrt.Pri()
	pt.PcktID = pcktID
	pt.ObjID = objID
	pt.Op = op
	pt.Reason = reason

	traceTime := strconv.FormatFloat(vrt.Seconds(), 'f', -1, 64)
	trcInst := TraceInst{TraceTime: traceTime, TraceType: trtToStr[PcktType], TraceStr: pt.Serialize()}
	tm.AddTrace(vrt, pcktID, trcInst)
}

// LinkTrace saves a change to the state of an interface
type LinkTrace struct {
	Time   float64
	Ticks  int64
	ObjID  int  // integer id of the interface
	Active bool // state the interface changed to
}

func (lt *LinkTrace) Serialize() string {
	bytes, merr := yaml.Marshal(*lt)
	if merr != nil {
		panic(merr)
	}
	return string(bytes[:])
}

// AddLinkTrace creates a record of an interface state change, and stores it
func (tm *TraceManager) AddLinkTrace(vrt vrtime.Time, objID int, active bool) {
	if !tm.InUse {
		return
	}
	lt := new(LinkTrace)
	lt.Time = vrt.Seconds()
	lt.Ticks = vrt.Ticks()
	lt.ObjID = objID
	lt.Active = active

	traceTime := strconv.FormatFloat(vrt.Seconds(), 'f', -1, 64)
	trcInst := TraceInst{TraceTime: traceTime, TraceType: trtToStr[LinkType], TraceStr: lt.Serialize()}
	tm.AddTrace(vrt, objID, trcInst)
}

// DumpTrace saves a rendering of a node's routing table at the moment a
// dump was requested
type DumpTrace struct {
	Time  float64
	ObjID int      // integer id of the node
	Table []string // one rendered line per route
}

func (dt *DumpTrace) Serialize() string {
	bytes, merr := yaml.Marshal(*dt)
	if merr != nil {
		panic(merr)
	}
	return string(bytes[:])
}

// AddDumpTrace creates a record of a routing table dump, and stores it
func (tm *TraceManager) AddDumpTrace(vrt vrtime.Time, objID int, table []string) {
	if !tm.InUse {
		return
	}
	dt := new(DumpTrace)
	dt.Time = vrt.Seconds()
	dt.ObjID = objID
	dt.Table = table

	traceTime := strconv.FormatFloat(vrt.Seconds(), 'f', -1, 64)
	trcInst := TraceInst{TraceTime: traceTime, TraceType: trtToStr[DumpType], TraceStr: dt.Serialize()}
	tm.AddTrace(vrt, objID, trcInst)
}
