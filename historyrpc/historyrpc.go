// Package historyrpc serves a run's scalar history over Connect, so a
// dashboard or another process can poll metrics while training runs.
//
// The service has two unary procedures using well-known protobuf types, so
// no generated code is needed:
//
//	GetLatest  StringValue(name) -> DoubleValue(value)
//	GetHistory StringValue(name) -> ListValue([[step, value], ...])
//
// An unknown name answers with CodeNotFound.
package historyrpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/tailored-agentic-units/trainmon/monitor"
)

const (
	ServiceName = "trainmon.v1.HistoryService"

	GetLatestProcedure  = "/" + ServiceName + "/GetLatest"
	GetHistoryProcedure = "/" + ServiceName + "/GetHistory"
)

// ErrBadResponse is returned by the client for a history it cannot decode.
var ErrBadResponse = errors.New("malformed history response")

// Source answers history queries; *monitor.Monitors satisfies it.
type Source interface {
	GetLatest(name string) (float64, error)
	GetHistory(name string) ([]monitor.Point, error)
}

// NewHandler returns the service path prefix and its handler, ready for
// mux.Handle.
func NewHandler(src Source, opts ...connect.HandlerOption) (string, http.Handler) {
	s := &server{src: src}

	mux := http.NewServeMux()
	mux.Handle(GetLatestProcedure, connect.NewUnaryHandler(GetLatestProcedure, s.getLatest, opts...))
	mux.Handle(GetHistoryProcedure, connect.NewUnaryHandler(GetHistoryProcedure, s.getHistory, opts...))
	return "/" + ServiceName + "/", mux
}

type server struct {
	src Source
}

func (s *server) getLatest(_ context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.DoubleValue], error) {
	name := req.Msg.GetValue()
	if name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("name is empty"))
	}

	v, err := s.src.GetLatest(name)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(wrapperspb.Double(v)), nil
}

func (s *server) getHistory(_ context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[structpb.ListValue], error) {
	name := req.Msg.GetValue()
	if name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("name is empty"))
	}

	points, err := s.src.GetHistory(name)
	if err != nil {
		return nil, toConnectError(err)
	}

	list := &structpb.ListValue{Values: make([]*structpb.Value, len(points))}
	for i, p := range points {
		list.Values[i] = structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{
			structpb.NewNumberValue(float64(p.Step)),
			structpb.NewNumberValue(p.Value),
		}})
	}
	return connect.NewResponse(list), nil
}

func toConnectError(err error) error {
	if errors.Is(err, monitor.ErrNotFound) {
		return connect.NewError(connect.CodeNotFound, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

// Client queries a remote history service.
type Client struct {
	latest  *connect.Client[wrapperspb.StringValue, wrapperspb.DoubleValue]
	history *connect.Client[wrapperspb.StringValue, structpb.ListValue]
}

// NewClient creates a client for the service at baseURL, e.g.
// "http://localhost:6006".
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	return &Client{
		latest:  connect.NewClient[wrapperspb.StringValue, wrapperspb.DoubleValue](httpClient, baseURL+GetLatestProcedure, opts...),
		history: connect.NewClient[wrapperspb.StringValue, structpb.ListValue](httpClient, baseURL+GetHistoryProcedure, opts...),
	}
}

// GetLatest returns the latest value of name. A name the server has not
// seen fails with monitor.ErrNotFound.
func (c *Client) GetLatest(ctx context.Context, name string) (float64, error) {
	res, err := c.latest.CallUnary(ctx, connect.NewRequest(wrapperspb.String(name)))
	if err != nil {
		return 0, fromConnectError(name, err)
	}
	return res.Msg.GetValue(), nil
}

// GetHistory returns every point recorded for name.
func (c *Client) GetHistory(ctx context.Context, name string) ([]monitor.Point, error) {
	res, err := c.history.CallUnary(ctx, connect.NewRequest(wrapperspb.String(name)))
	if err != nil {
		return nil, fromConnectError(name, err)
	}

	items := res.Msg.GetValues()
	points := make([]monitor.Point, len(items))
	for i, item := range items {
		pair := item.GetListValue().GetValues()
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: point %d has %d fields", ErrBadResponse, i, len(pair))
		}
		points[i] = monitor.Point{
			Step:  int(pair[0].GetNumberValue()),
			Value: pair[1].GetNumberValue(),
		}
	}
	return points, nil
}

func fromConnectError(name string, err error) error {
	if connect.CodeOf(err) == connect.CodeNotFound {
		return fmt.Errorf("%w: %s", monitor.ErrNotFound, name)
	}
	return err
}

// LoggingInterceptor logs each call at Debug level, failures at Warn.
func LoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			res, err := next(ctx, req)

			attrs := []any{"procedure", req.Spec().Procedure, "duration", time.Since(start)}
			if err != nil {
				logger.WarnContext(ctx, "history call failed", append(attrs, "code", connect.CodeOf(err).String(), "error", err)...)
			} else {
				logger.DebugContext(ctx, "history call", attrs...)
			}
			return res, err
		}
	}
}
