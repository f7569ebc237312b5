package wansim

// errors.go defines the error types raised while a scenario is being
// assembled.  All of them surface synchronously to the caller during setup;
// once a run starts nothing the simulation does produces one of these.
// Per-packet outcomes (no route, all routes down) are ordinary values, not
// errors -- see fwd.go.

import (
	"errors"
	"fmt"
	"strings"
)

// A ConfigurationError reports a malformed or duplicated route, a malformed
// address or mask, or a reference to a node or interface that does not exist.
type ConfigurationError struct {
	msg string
}

func (ce *ConfigurationError) Error() string {
	return "configuration error: " + ce.msg
}

// cfgErrorf builds a ConfigurationError from a format string
func cfgErrorf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{msg: fmt.Sprintf(format, args...)}
}

// A SchedulingError reports a request to schedule an action at a time
// earlier than the scheduler's current position.
type SchedulingError struct {
	msg string
}

func (se *SchedulingError) Error() string {
	return "scheduling error: " + se.msg
}

func schedErrorf(format string, args ...any) *SchedulingError {
	return &SchedulingError{msg: fmt.Sprintf(format, args...)}
}

// A TopologyError reports invalid graph construction, e.g. linking an
// interface that is already bound to a link, or assigning an address that
// is already bound elsewhere in the topology.
type TopologyError struct {
	msg string
}

func (te *TopologyError) Error() string {
	return "topology error: " + te.msg
}

func topoErrorf(format string, args ...any) *TopologyError {
	return &TopologyError{msg: fmt.Sprintf(format, args...)}
}

// ReportErrs combines the non-nil errors on a list into one
func ReportErrs(errs []error) error {
	errMsg := make([]string, 0)
	for _, err := range errs {
		if err != nil {
			errMsg = append(errMsg, err.Error())
		}
	}
	if len(errMsg) == 0 {
		return nil
	}

	return errors.New(strings.Join(errMsg, ","))
}
