package wansim

// evtmgr.go holds the discrete-event scheduler at the center of the
// simulation.  Pending events live on a min-priority heap ordered by
// timestamp, with ties broken by the order in which Schedule was called, so
// that two runs over identical inputs replay identically.  The scheduler is
// the sole authority on the current simulated time; nothing else in the
// package reads a clock.

import (
	"container/heap"

	"github.com/iti/evt/vrtime"
)

// EventHandlerFunction is the signature of every scheduled action.  The
// context argument carries the object the event acts on, data carries the
// information package the event delivers to it.
type EventHandlerFunction func(evtMgr *EventScheduler, context any, data any) any

// simEvent pairs a handler with the time it fires.  An event is owned by the
// scheduler from Schedule until it is popped and executed, and is discarded
// after execution.
type simEvent struct {
	time    float64 // absolute simulation time, in seconds
	seq     int64   // insertion sequence number, breaks timestamp ties
	context any
	data    any
	handler EventHandlerFunction
}

// evtHeap and its methods implement a min-priority heap over (time, seq)
type evtHeap []*simEvent

func (h evtHeap) Len() int { return len(h) }
func (h evtHeap) Less(i, j int) bool {
	if h[i].time != h[j].time {
		return h[i].time < h[j].time
	}
	return h[i].seq < h[j].seq
}
func (h evtHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *evtHeap) Push(x any) {
	*h = append(*h, x.(*simEvent))
}

func (h *evtHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// EventScheduler holds the pending event list and the current virtual time
type EventScheduler struct {
	now     float64
	nxtSeq  int64
	pending evtHeap
}

// CreateEventScheduler is a constructor
func CreateEventScheduler() *EventScheduler {
	es := new(EventScheduler)
	es.pending = []*simEvent{}
	heap.Init(&es.pending)
	return es
}

// CurrentSeconds returns the simulated time of the event being executed
// (or of the most recently executed one, between calls to Run)
func (es *EventScheduler) CurrentSeconds() float64 {
	return es.now
}

// CurrentTime returns the current simulated time in its virtual-time form,
// used when stamping trace records
func (es *EventScheduler) CurrentTime() vrtime.Time {
	return vrtime.SecondsToTime(es.now)
}

// Pending returns the number of events not yet executed
func (es *EventScheduler) Pending() int {
	return es.pending.Len()
}

// Schedule enqueues handler to execute at absolute simulation time 'at',
// with 'context' and 'data' passed through to it.  Once scheduled an event
// always executes; there is no cancellation.  A request for a time earlier
// than the current simulated time fails with a SchedulingError.
func (es *EventScheduler) Schedule(context any, data any, handler EventHandlerFunction, at float64) error {
	if at < es.now {
		return schedErrorf("event time %.6f is earlier than current time %.6f", at, es.now)
	}
	es.nxtSeq += 1
	heap.Push(&es.pending, &simEvent{time: at, seq: es.nxtSeq, context: context, data: data, handler: handler})
	return nil
}

// Run pops and executes pending events in (time, seq) order until none
// remain with timestamp at or before stopTime.  Each handler runs to
// completion before the next event is considered.  Events scheduled during
// execution join the queue and are drained in the same pass when they fall
// within the stop time.
func (es *EventScheduler) Run(stopTime float64) {
	for es.pending.Len() > 0 {
		if es.pending[0].time > stopTime {
			break
		}
		evt := heap.Pop(&es.pending).(*simEvent)
		es.now = evt.time
		evt.handler(es, evt.context, evt.data)
	}
}
