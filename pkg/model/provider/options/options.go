package options

import (
	"net/http"
)

type ModelOptions struct {
	transport     http.RoundTripper
	disableStream bool
}

func (c *ModelOptions) Transport() http.RoundTripper {
	return c.transport
}

// Streaming reports whether turns should be requested as streams. When
// false the provider issues a single request and replays the completed
// response as a one-fragment stream.
func (c *ModelOptions) Streaming() bool {
	return !c.disableStream
}

type Opt func(*ModelOptions)

// WithTransport sets the HTTP transport used to reach the model API.
func WithTransport(t http.RoundTripper) Opt {
	return func(cfg *ModelOptions) {
		cfg.transport = t
	}
}

func WithStreaming(stream bool) Opt {
	return func(cfg *ModelOptions) {
		cfg.disableStream = !stream
	}
}

// Apply folds opts into a ModelOptions value.
func Apply(opts ...Opt) ModelOptions {
	var m ModelOptions
	for _, opt := range opts {
		opt(&m)
	}
	return m
}
