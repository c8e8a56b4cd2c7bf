package transport

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func effectNames(effs []effect) []string {
	names := make([]string, 0, len(effs))
	for _, e := range effs {
		switch e := e.(type) {
		case effOpenStream:
			names = append(names, "open-stream")
		case effCloseStream:
			names = append(names, "close-stream")
		case effSetEndpoint:
			names = append(names, "set-endpoint")
		case effCompleteConnect:
			if e.err == nil {
				names = append(names, "connect-ok")
			} else {
				names = append(names, "connect-fail")
			}
		case effRejectPending:
			names = append(names, "reject-pending")
		case effEmit:
			names = append(names, "emit-"+e.ev.Kind.String())
		case effIgnore:
			names = append(names, "ignore")
		}
	}
	return names
}

func TestTransition(t *testing.T) {
	endpoint, err := url.Parse("http://node.local/rpc?session=S1")
	require.NoError(t, err)
	boom := errors.New("boom")

	tests := []struct {
		name    string
		from    State
		in      input
		want    State
		effects []string
	}{
		{"connect from disconnected", StateDisconnected, inConnect{}, StateConnecting, []string{"open-stream"}},
		{"connect from closed", StateClosed, inConnect{}, StateConnecting, []string{"open-stream"}},
		{"connect while connecting", StateConnecting, inConnect{}, StateConnecting,
			[]string{"close-stream", "connect-fail", "reject-pending", "open-stream"}},
		{"connect while ready", StateReady, inConnect{}, StateConnecting,
			[]string{"close-stream", "reject-pending", "emit-close", "open-stream"}},

		{"endpoint while connecting", StateConnecting, inEndpoint{url: endpoint}, StateReady,
			[]string{"set-endpoint", "connect-ok", "emit-open"}},
		{"second endpoint", StateReady, inEndpoint{url: endpoint}, StateReady, []string{"ignore"}},
		{"endpoint after close", StateClosed, inEndpoint{url: endpoint}, StateClosed, []string{"ignore"}},

		{"bad endpoint while connecting", StateConnecting, inEndpointInvalid{err: ErrEmptyEndpoint}, StateClosed,
			[]string{"close-stream", "connect-fail", "reject-pending", "emit-error"}},
		{"bad endpoint while ready", StateReady, inEndpointInvalid{err: ErrEmptyEndpoint}, StateReady, []string{"ignore"}},

		{"stream error while connecting", StateConnecting, inStreamError{err: boom}, StateClosed,
			[]string{"close-stream", "connect-fail", "reject-pending", "emit-error"}},
		{"stream error while ready", StateReady, inStreamError{err: boom}, StateClosed,
			[]string{"close-stream", "reject-pending", "emit-error", "emit-close"}},
		{"stream error after close", StateClosed, inStreamError{err: boom}, StateClosed, []string{}},

		{"disconnect while connecting", StateConnecting, inDisconnect{reason: "bye"}, StateClosed,
			[]string{"close-stream", "connect-fail", "reject-pending"}},
		{"disconnect while ready", StateReady, inDisconnect{reason: "bye"}, StateClosed,
			[]string{"close-stream", "reject-pending", "emit-close"}},
		{"disconnect twice", StateClosed, inDisconnect{reason: "bye"}, StateClosed, []string{}},
		{"disconnect before connect", StateDisconnected, inDisconnect{reason: "bye"}, StateDisconnected, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, effs := transition(tt.from, tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.effects, effectNames(effs))
		})
	}
}

func TestTransition_DisconnectReason(t *testing.T) {
	_, effs := transition(StateReady, inDisconnect{reason: "user left"})
	var rejected, closed bool
	for _, e := range effs {
		switch e := e.(type) {
		case effRejectPending:
			var de *DisconnectError
			require.True(t, errors.As(e.err, &de))
			assert.Equal(t, "user left", de.Reason)
			assert.ErrorIs(t, e.err, ErrDisconnected)
			rejected = true
		case effEmit:
			assert.Equal(t, EventClose, e.ev.Kind)
			assert.Equal(t, "user left", e.ev.Reason)
			closed = true
		}
	}
	assert.True(t, rejected)
	assert.True(t, closed)
}

func TestTransition_StreamFailureKeepsCause(t *testing.T) {
	_, effs := transition(StateReady, inStreamError{err: ErrStreamClosed})
	for _, e := range effs {
		if e, ok := e.(effRejectPending); ok {
			assert.ErrorIs(t, e.err, ErrStreamClosed)
			assert.ErrorIs(t, e.err, ErrDisconnected)
		}
	}
}
