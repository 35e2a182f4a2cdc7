// Package rpc implements the JSON-RPC 2.0 call layer over the forms service
// transport.
package rpc

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync/atomic"
	"time"

	"github.com/Huzefa-Jadliwala/invox-client/internal/common/errors"
	commonhttp "github.com/Huzefa-Jadliwala/invox-client/internal/common/http"
	"github.com/Huzefa-Jadliwala/invox-client/internal/common/logger"
	"github.com/Huzefa-Jadliwala/invox-client/internal/common/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultPath is the endpoint every call is posted to.
const DefaultPath = "/rpc"

const tracerName = "github.com/Huzefa-Jadliwala/invox-client/internal/rpc"

// Poster sends a JSON body and returns the 2xx response.
type Poster interface {
	Post(ctx context.Context, path string, body interface{}) (*commonhttp.Response, error)
}

// Client is safe for concurrent use.
type Client struct {
	poster     Poster
	path       string
	log        logger.Logger
	tracer     trace.Tracer
	sequential bool
	nextID     atomic.Int64
}

type Option func(*Client)

// WithPath overrides DefaultPath.
func WithPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.path = path
		}
	}
}

// WithSequentialIDs gives every call its own id instead of DefaultID.
func WithSequentialIDs() Option {
	return func(c *Client) { c.sequential = true }
}

// WithTracerProvider sets where call spans go. The global provider is used
// otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

func NewClient(poster Poster, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	c := &Client{
		poster: poster,
		path:   DefaultPath,
		log:    log,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) id() int64 {
	if !c.sequential {
		return DefaultID
	}
	return c.nextID.Add(1)
}

// Call performs one round trip and returns the raw result, unvalidated.
// Transport errors are returned as received.
func (c *Client) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	env := NewEnvelope(method, params, c.id())

	ctx, span := c.tracer.Start(ctx, method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.system", "jsonrpc"),
			attribute.String("rpc.method", method),
			attribute.Int64("rpc.jsonrpc.request_id", env.ID),
		),
	)
	defer span.End()

	start := time.Now()

	resp, err := c.poster.Post(ctx, c.path, env)
	elapsed := time.Since(start)
	metrics.RPCCallDuration.WithLabelValues(method).Observe(elapsed.Seconds())

	fields := map[string]interface{}{
		"method":     method,
		"id":         env.ID,
		"durationMs": elapsed.Milliseconds(),
	}

	if err != nil {
		c.fail(span, method, err, "RPC transport failed", fields)
		return nil, err
	}

	result, err := DecodeResponse(method, resp.Data)
	if err != nil {
		c.fail(span, method, err, "RPC call failed", fields)
		return nil, err
	}

	metrics.RPCCallsTotal.WithLabelValues(method, metrics.OutcomeSuccess).Inc()
	c.log.Debug("RPC call completed", fields)
	return result, nil
}

func (c *Client) fail(span trace.Span, method string, err error, msg string, fields map[string]interface{}) {
	metrics.RPCCallsTotal.WithLabelValues(method, outcomeOf(err)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	fields["category"] = errors.GetErrorCategory(errors.CodeOf(err))
	c.log.WithError(err).Warn(msg, fields)
}

func outcomeOf(err error) string {
	switch {
	case stderrors.Is(err, errors.ErrRPC):
		return metrics.OutcomeRPC
	case stderrors.Is(err, errors.ErrEmptyResponse), stderrors.Is(err, errors.ErrMalformedResponse):
		return metrics.OutcomeProtocol
	default:
		return metrics.OutcomeTransport
	}
}
