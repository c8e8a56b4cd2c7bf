package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sourcegraph/jsonrpc2"
)

const (
	DefaultStreamPath     = "/sse"
	DefaultTokenParam     = "token"
	DefaultRequestTimeout = 30 * time.Second

	maxEventSize = 4 << 20
	maxErrorBody = 64 << 10
)

type options struct {
	streamPath     string
	tokenParam     string
	httpClient     *http.Client
	requestTimeout time.Duration
	log            *slog.Logger
	clock          clockwork.Clock
}

type Option func(*options)

func WithStreamPath(path string) Option {
	return func(o *options) { o.streamPath = path }
}

func WithTokenParam(name string) Option {
	return func(o *options) { o.tokenParam = name }
}

// WithHTTPClient sets the client used for both the stream and the POSTs.
// Its Timeout must be zero or the stream will be cut off.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithRequestTimeout sets the default bound for SendRequest. d <= 0
// disables it.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

func defaultOptions() options {
	return options{
		streamPath:     DefaultStreamPath,
		tokenParam:     DefaultTokenParam,
		httpClient:     http.DefaultClient,
		requestTimeout: DefaultRequestTimeout,
		log:            slog.Default(),
		clock:          clockwork.NewRealClock(),
	}
}

type callOptions struct {
	timeout time.Duration
	id      *jsonrpc2.ID
}

type CallOption func(*callOptions)

// WithTimeout overrides the session's request timeout for one call.
// d <= 0 waits until a response, a disconnect or ctx ends the call.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

// WithID uses id instead of the next generated one.
func WithID(id jsonrpc2.ID) CallOption {
	return func(o *callOptions) { o.id = &id }
}
