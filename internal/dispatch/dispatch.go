// Package dispatch maps method names to handlers and normalizes handler
// failures into structured error responses.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/codefionn/pytools/internal/logger"
	"github.com/codefionn/pytools/internal/rpc"
)

var (
	// ErrInvalidParams marks missing or malformed parameters (ParamError).
	ErrInvalidParams = errors.New("invalid params")
	// ErrNotInitialized marks a feature call before initialize (NotInitialized).
	ErrNotInitialized = errors.New("project not initialized")
)

// Handler serves one method. The returned value becomes the result of the
// response; a non-nil error is normalized by the registry.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Outcome is the result of dispatching a request.
type Outcome struct {
	Response *rpc.Response
	// Terminate is set after a terminal method; the server stops once the
	// response has been written.
	Terminate bool
}

type entry struct {
	handler  Handler
	terminal bool
}

// Registry is the method table of the server.
type Registry struct {
	mu       sync.RWMutex
	handlers map[rpc.Method]entry
	log      *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[rpc.Method]entry),
		log:      logger.Global().WithPrefix("dispatch"),
	}
}

// Register adds a handler, replacing any previous one for the method.
func (r *Registry) Register(method rpc.Method, h Handler) {
	r.register(method, h, false)
}

// RegisterTerminal adds a handler after which the server terminates.
func (r *Registry) RegisterTerminal(method rpc.Method, h Handler) {
	r.register(method, h, true)
}

func (r *Registry) register(method rpc.Method, h Handler, terminal bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = entry{handler: h, terminal: terminal}
}

// Methods returns the registered method names in sorted order.
func (r *Registry) Methods() []rpc.Method {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]rpc.Method, 0, len(r.handlers))
	for m := range r.handlers {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	return methods
}

// Verify checks that every given method has a handler.
func (r *Registry) Verify(methods ...rpc.Method) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	for _, m := range methods {
		if _, ok := r.handlers[m]; !ok {
			missing = append(missing, string(m))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("no handler registered for: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Handle parses a request body and dispatches it.
func (r *Registry) Handle(ctx context.Context, body string) Outcome {
	req, err := rpc.ParseRequest(body)
	if err != nil {
		r.log.Warn("Rejected request: %v", err)
		return Outcome{Response: rpc.Fail(Normalize(err))}
	}
	return r.Dispatch(ctx, req)
}

// Dispatch runs the handler for req. It never panics; every failure is
// turned into an error response.
func (r *Registry) Dispatch(ctx context.Context, req *rpc.Request) Outcome {
	r.mu.RLock()
	e, ok := r.handlers[req.Method]
	r.mu.RUnlock()

	if !ok {
		r.log.Warn("Unknown method: %s", req.Method)
		resp := rpc.Failf(rpc.CodeMethodError, "unknown method %q", req.Method)
		resp.ID = req.ID
		return Outcome{Response: resp}
	}

	result, err := call(ctx, e.handler, req.Params)

	var resp *rpc.Response
	if err != nil {
		rpcErr := Normalize(err)
		if rpcErr.Code == rpc.CodeInternalError {
			r.log.Error("%s failed: %v", req.Method, err)
		} else {
			r.log.Debug("%s rejected: %v", req.Method, err)
		}
		resp = rpc.Fail(rpcErr)
	} else {
		resp = rpc.OK(result)
	}
	resp.ID = req.ID

	return Outcome{Response: resp, Terminate: e.terminal}
}

func call(ctx context.Context, h Handler, params json.RawMessage) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panicked: %v", p)
		}
	}()
	return h(ctx, params)
}

// Normalize converts a handler error into a structured error.
func Normalize(err error) *rpc.Error {
	var rpcErr *rpc.Error
	switch {
	case errors.As(err, &rpcErr):
		return rpcErr
	case errors.Is(err, ErrInvalidParams):
		return &rpc.Error{Code: rpc.CodeParamError, Message: err.Error()}
	case errors.Is(err, ErrNotInitialized):
		return &rpc.Error{Code: rpc.CodeNotInitialized, Message: err.Error()}
	default:
		return &rpc.Error{Code: rpc.CodeInternalError, Message: err.Error()}
	}
}

// DecodeParams unmarshals raw into v after checking that raw is an object
// holding every required key.
func DecodeParams(raw json.RawMessage, v any, required ...string) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("%w: params must be an object: %v", ErrInvalidParams, err)
	}
	if fields == nil {
		return fmt.Errorf("%w: params must be an object", ErrInvalidParams)
	}
	for _, key := range required {
		if _, ok := fields[key]; !ok {
			return fmt.Errorf("%w: missing %q", ErrInvalidParams, key)
		}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}
