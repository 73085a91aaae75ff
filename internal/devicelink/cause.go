package devicelink

import (
	"errors"
	"io"
	"net"
)

// State is the externally observable state of a Link.
type State int32

const (
	StateIdle State = iota
	StateListening
	StateConnected
	StateHold
	StatePaused
	StateRecovering
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateConnected:
		return "connected"
	case StateHold:
		return "hold"
	case StatePaused:
		return "paused"
	case StateRecovering:
		return "recovering"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Cause classifies why a listen or connection cycle ended.
type Cause int

const (
	CauseNone Cause = iota
	CauseBind
	CauseAccept
	CauseWrite
	CauseRead
	CauseClosed
	CauseTimeout
	CauseStopped
)

func (c Cause) String() string {
	switch c {
	case CauseNone:
		return "none"
	case CauseBind:
		return "bind"
	case CauseAccept:
		return "accept"
	case CauseWrite:
		return "write"
	case CauseRead:
		return "read"
	case CauseClosed:
		return "closed by peer"
	case CauseTimeout:
		return "read timeout"
	case CauseStopped:
		return "stopped"
	}
	return "unknown"
}

// Retry is the recovery decision for a Cause.
type Retry struct {
	Relisten bool // close and re-bind the listening socket
	Backoff  bool // wait the reconnect backoff before the next attempt
	Stop     bool // leave the loop for good
}

// retryPolicy is the complete decision table for transport failures.
var retryPolicy = map[Cause]Retry{
	CauseBind:    {Relisten: true, Backoff: true},
	CauseAccept:  {Relisten: true, Backoff: true},
	CauseWrite:   {Backoff: true},
	CauseRead:    {Backoff: true},
	CauseClosed:  {Backoff: true},
	CauseTimeout: {Backoff: true},
	CauseStopped: {Stop: true},
}

// PolicyFor returns the recovery decision for c.
func PolicyFor(c Cause) Retry {
	if r, ok := retryPolicy[c]; ok {
		return r
	}
	return Retry{Relisten: true, Backoff: true}
}

// classifyRead maps a read error onto a Cause.
func classifyRead(err error) Cause {
	if errors.Is(err, io.EOF) {
		return CauseClosed
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CauseTimeout
	}
	return CauseRead
}
