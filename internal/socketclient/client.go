package socketclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/codefionn/pytools/internal/config"
	"github.com/codefionn/pytools/internal/consts"
	"github.com/codefionn/pytools/internal/framing"
	"github.com/codefionn/pytools/internal/logger"
	"github.com/codefionn/pytools/internal/rpc"
)

// ErrServerUnavailable means no server accepted the connection.
var ErrServerUnavailable = errors.New("analysis server unavailable")

// Config holds client configuration
type Config struct {
	// Address is the host:port of the server
	Address string
	// RequestTimeout is the default timeout of a call, connect included
	RequestTimeout time.Duration
	// BufferSize is the size of a single socket read
	BufferSize int
	// MaxContentLength rejects responses declaring a larger body
	MaxContentLength int
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Address:          net.JoinHostPort(consts.DefaultHost, fmt.Sprint(consts.DefaultPort)),
		RequestTimeout:   consts.Timeout30Seconds,
		BufferSize:       consts.BufferSize1KB,
		MaxContentLength: consts.BufferSize64MB,
	}
}

// ConfigFrom derives the client configuration from the application config.
func ConfigFrom(cfg *config.Config) *Config {
	return &Config{
		Address:          cfg.Address(),
		RequestTimeout:   cfg.RequestTimeout(),
		BufferSize:       cfg.BufferSize,
		MaxContentLength: cfg.MaxContentLength,
	}
}

// Client sends requests to the analysis server.
type Client struct {
	config *Config
	dialer net.Dialer
	log    *logger.Logger
}

// NewClient creates a client. It does not connect.
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Client{
		config: cfg,
		log:    logger.Global().WithPrefix("client"),
	}
}

// Address returns the server address the client dials.
func (c *Client) Address() string {
	return c.config.Address
}

// Call builds a request for method and sends it.
func (c *Client) Call(ctx context.Context, method rpc.Method, params any, timeout time.Duration) (*rpc.Response, error) {
	req, err := rpc.NewRequest(method, params)
	if err != nil {
		return nil, err
	}
	return c.Request(ctx, req, timeout)
}

// Request performs one connect-send-receive-close cycle. A timeout of zero
// or less uses the configured default; a deadline on ctx also applies.
//
// The returned error is non-nil only when the server could not be reached,
// the request could not be sent, or ctx was cancelled.
func (c *Client) Request(ctx context.Context, req *rpc.Request, timeout time.Duration) (*rpc.Response, error) {
	if timeout <= 0 {
		timeout = c.config.RequestTimeout
	}
	if len(req.ID) == 0 {
		withID := *req
		withID.ID = rpc.StringID(uuid.New().String())
		req = &withID
	}

	body, err := req.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", req.Method, err)
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	conn, err := c.dialer.DialContext(dialCtx, "tcp", c.config.Address)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		if isTimeout(err) || errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			return c.timedOut(req, timeout), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrServerUnavailable, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	c.log.Debug("-> %s (%s)", req.Method, req.ID)

	if err := framing.WriteFrame(conn, body); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		if isTimeout(err) {
			return c.timedOut(req, timeout), nil
		}
		return nil, fmt.Errorf("failed to send %s request: %w", req.Method, err)
	}

	respBody, err := framing.ReadFrame(conn, framing.Options{
		BufferSize:       c.config.BufferSize,
		MaxContentLength: c.config.MaxContentLength,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		if isTimeout(err) {
			return c.timedOut(req, timeout), nil
		}
		c.log.Warn("Unreadable response to %s: %v", req.Method, err)
		return withID(rpc.Failf(rpc.CodeInputError, "unreadable response: %v", err), req.ID), nil
	}

	resp, err := rpc.ParseResponse(respBody)
	if err != nil {
		c.log.Warn("Malformed response to %s: %v", req.Method, err)
		return withID(rpc.Failf(rpc.CodeInputError, "malformed response: %v", err), req.ID), nil
	}

	c.log.Debug("<- %s (%s) failed=%t", req.Method, req.ID, resp.Failed())
	return resp, nil
}

func (c *Client) timedOut(req *rpc.Request, timeout time.Duration) *rpc.Response {
	c.log.Warn("%s timed out after %s", req.Method, timeout)
	return withID(rpc.Failf(rpc.CodeRequestTimeout, "%s timed out after %s", req.Method, timeout), req.ID)
}

func withID(resp *rpc.Response, id json.RawMessage) *rpc.Response {
	resp.ID = id
	return resp
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
