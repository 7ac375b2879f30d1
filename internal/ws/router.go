package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"auctionengine/internal/domain"
	"auctionengine/internal/http/httperr"

	"github.com/google/uuid"
)

var (
	errUnknownEvent = errors.New("unknown_event")
	errBadBody      = errors.New("malformed body")
	errBadFrame     = errors.New("malformed frame")
	errAnonymous    = errors.New("authentication required")
)

const eventError = "error"

// Reply is the single frame written back for every inbound frame.
type Reply struct {
	Event string `json:"event"`
	Body  any    `json:"body,omitempty"`
}

type route struct {
	authenticated bool
	call          func(ctx context.Context, cc *ConnContext, body json.RawMessage) (any, error)
}

type RouteOption func(*route)

// Authenticated turns away anonymous sockets before the body is decoded.
func Authenticated() RouteOption {
	return func(r *route) { r.authenticated = true }
}

// Router maps inbound event names to typed handlers and turns their results
// into ack or error replies.
type Router struct {
	timeout time.Duration

	mu     sync.RWMutex
	routes map[string]route
}

func NewRouter(timeout time.Duration) *Router {
	return &Router{timeout: timeout, routes: make(map[string]route)}
}

// Register binds event to h. The frame body is decoded into Req; a body that
// does not decode is answered as an InvalidRequest without calling h.
func Register[Req any, Res any](
	r *Router,
	event string,
	h func(ctx context.Context, cc *ConnContext, req Req) (Res, error),
	opts ...RouteOption,
) {
	if event == "" || event == eventError {
		panic(fmt.Sprintf("ws router: reserved event %q", event))
	}

	rt := route{call: func(ctx context.Context, cc *ConnContext, body json.RawMessage) (any, error) {
		var req Req
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return nil, fmt.Errorf("%w: %v", errBadBody, err)
			}
		}
		return h(ctx, cc, req)
	}}
	for _, opt := range opts {
		opt(&rt)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[event] = rt
}

// Serve answers one raw frame from cc with "<event>-ack" or "error".
func (r *Router) Serve(ctx context.Context, cc *ConnContext, data []byte) Reply {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Reply{Event: eventError, Body: errorBody(errBadFrame)}
	}
	res, err := r.dispatch(ctx, cc, env)
	if err != nil {
		return Reply{Event: eventError, Body: errorBody(err)}
	}
	return Reply{Event: env.Event + "-ack", Body: res}
}

func (r *Router) dispatch(ctx context.Context, cc *ConnContext, env Envelope) (any, error) {
	r.mu.RLock()
	rt, ok := r.routes[env.Event]
	r.mu.RUnlock()
	if !ok {
		return nil, errUnknownEvent
	}
	if rt.authenticated && cc.UserID == uuid.Nil {
		return nil, errAnonymous
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return rt.call(ctx, cc, env.Body)
}

func errorBody(err error) ErrorBody {
	switch {
	case errors.Is(err, errUnknownEvent), errors.Is(err, errAnonymous), errors.Is(err, errBadFrame):
		return ErrorBody{Error: err.Error()}
	case errors.Is(err, errBadBody):
		return ErrorBody{Error: err.Error(), Reason: string(domain.ReasonInvalidRequest)}
	}
	_, body := httperr.Map(err)
	return ErrorBody{Error: body.Error, Reason: body.Reason, Retryable: body.Retryable}
}
