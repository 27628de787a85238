package socketserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/codefionn/pytools/internal/consts"
	"github.com/codefionn/pytools/internal/dispatch"
	"github.com/codefionn/pytools/internal/framing"
	"github.com/codefionn/pytools/internal/logger"
	"github.com/codefionn/pytools/internal/rpc"
)

// Options tunes request handling.
type Options struct {
	// ReadTimeout bounds reading one request (0 = no limit)
	ReadTimeout time.Duration
	// BufferSize is the size of a single socket read
	BufferSize int
	// MaxContentLength rejects requests declaring a larger body
	MaxContentLength int
}

// Server serves framed requests on a listener, one connection at a time.
type Server struct {
	listener net.Listener
	registry *dispatch.Registry
	opts     Options
	log      *logger.Logger

	mu      sync.Mutex
	running bool
	handled int
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

// NewServer creates a server on an already bound listener.
func NewServer(ln net.Listener, registry *dispatch.Registry, opts Options) *Server {
	return &Server{
		listener: ln,
		registry: registry,
		opts:     opts,
		log:      logger.Global().WithPrefix("server"),
	}
}

// Addr returns the listen address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Handled returns the number of connections served so far.
func (s *Server) Handled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handled
}

// Serve accepts connections until a terminal method has been answered or
// ctx is cancelled. The listener is closed on return.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.listener.Close()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.log.Info("Analysis server listening on %s", s.listener.Addr())

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Accept loop stopped via context cancellation")
			return nil
		default:
		}

		// Poll so cancellation is noticed while idle
		if dl, ok := s.listener.(deadliner); ok {
			_ = dl.SetDeadline(time.Now().Add(consts.Timeout1Second))
		}

		conn, err := s.listener.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				s.log.Info("Listener closed, exiting accept loop")
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		terminate := s.handleConn(ctx, conn)

		s.mu.Lock()
		s.handled++
		s.mu.Unlock()

		if terminate {
			s.log.Info("Terminal request answered, stopping")
			return nil
		}
	}
}

// handleConn serves the single request carried by conn and reports whether
// the server should stop.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) bool {
	defer conn.Close()

	if s.opts.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	}

	body, err := framing.ReadFrame(conn, framing.Options{
		BufferSize:       s.opts.BufferSize,
		MaxContentLength: s.opts.MaxContentLength,
	})
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.log.Debug("Connection from %s closed without a request", conn.RemoteAddr())
			return false
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			s.log.Warn("Timed out reading request from %s", conn.RemoteAddr())
			return false
		}
		s.log.Warn("Invalid frame from %s: %v", conn.RemoteAddr(), err)
		s.respond(conn, rpc.Failf(rpc.CodeInputError, "invalid frame: %v", err))
		return false
	}

	out := s.registry.Handle(ctx, body)
	s.respond(conn, out.Response)
	return out.Terminate
}

func (s *Server) respond(conn net.Conn, resp *rpc.Response) {
	body, err := resp.Encode()
	if err != nil {
		s.log.Error("Failed to encode response: %v", err)
		body, _ = rpc.Failf(rpc.CodeInternalError, "failed to encode response").Encode()
	}

	_ = conn.SetWriteDeadline(time.Now().Add(consts.Timeout5Seconds))
	if err := framing.WriteFrame(conn, body); err != nil {
		s.log.Warn("Failed to send response to %s: %v", conn.RemoteAddr(), err)
	}
}
