package transport

import (
	"net/url"
)

// State is the lifecycle of one session:
// disconnected -> connecting -> ready -> closed, and back to connecting on
// the next Connect.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Inputs fed to transition.
type (
	input interface{ isInput() }

	inConnect         struct{}
	inEndpoint        struct{ url *url.URL }
	inEndpointInvalid struct{ err error }
	inStreamError     struct{ err error }
	inDisconnect      struct{ reason string }
)

func (inConnect) isInput()         {}
func (inEndpoint) isInput()        {}
func (inEndpointInvalid) isInput() {}
func (inStreamError) isInput()     {}
func (inDisconnect) isInput()      {}

// Effects the session carries out, in order, after a transition.
type (
	effect interface{ isEffect() }

	effOpenStream      struct{}
	effCloseStream     struct{}
	effSetEndpoint     struct{ url *url.URL }
	effCompleteConnect struct{ err error }
	effRejectPending   struct{ err error }
	effEmit            struct{ ev Event }
	effIgnore          struct{ what string }
)

func (effOpenStream) isEffect()      {}
func (effCloseStream) isEffect()     {}
func (effSetEndpoint) isEffect()     {}
func (effCompleteConnect) isEffect() {}
func (effRejectPending) isEffect()   {}
func (effEmit) isEffect()            {}
func (effIgnore) isEffect()          {}

const reasonReconnect = "reconnect"

// transition is the whole connection protocol. It has no side effects;
// the returned effects describe what has to happen.
func transition(s State, in input) (State, []effect) {
	switch in := in.(type) {
	case inConnect:
		effs := teardown(s, &DisconnectError{Reason: reasonReconnect})
		return StateConnecting, append(effs, effOpenStream{})

	case inEndpoint:
		if s != StateConnecting {
			return s, []effect{effIgnore{what: "endpoint event"}}
		}
		return StateReady, []effect{
			effSetEndpoint{url: in.url},
			effCompleteConnect{},
			effEmit{ev: Event{Kind: EventOpen, Endpoint: in.url.String()}},
		}

	case inEndpointInvalid:
		if s != StateConnecting {
			return s, []effect{effIgnore{what: "invalid endpoint event"}}
		}
		return StateClosed, []effect{
			effCloseStream{},
			effCompleteConnect{err: in.err},
			effRejectPending{err: &DisconnectError{Reason: "endpoint discovery failed", Err: in.err}},
			effEmit{ev: Event{Kind: EventError, Err: in.err}},
		}

	case inStreamError:
		switch s {
		case StateConnecting:
			return StateClosed, []effect{
				effCloseStream{},
				effCompleteConnect{err: in.err},
				effRejectPending{err: &DisconnectError{Reason: "stream failed", Err: in.err}},
				effEmit{ev: Event{Kind: EventError, Err: in.err}},
			}
		case StateReady:
			return StateClosed, []effect{
				effCloseStream{},
				effRejectPending{err: &DisconnectError{Reason: "stream failed", Err: in.err}},
				effEmit{ev: Event{Kind: EventError, Err: in.err}},
				effEmit{ev: Event{Kind: EventClose, Reason: in.err.Error()}},
			}
		default:
			return s, nil
		}

	case inDisconnect:
		switch s {
		case StateConnecting, StateReady:
			return StateClosed, teardown(s, &DisconnectError{Reason: in.reason})
		default:
			return s, nil
		}
	}
	return s, nil
}

// teardown lists the effects of leaving an active state on purpose.
func teardown(s State, err *DisconnectError) []effect {
	switch s {
	case StateConnecting:
		return []effect{
			effCloseStream{},
			effCompleteConnect{err: err},
			effRejectPending{err: err},
		}
	case StateReady:
		return []effect{
			effCloseStream{},
			effRejectPending{err: err},
			effEmit{ev: Event{Kind: EventClose, Reason: err.Reason}},
		}
	default:
		return nil
	}
}
