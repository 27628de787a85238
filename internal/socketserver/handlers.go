package socketserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/codefionn/pytools/internal/dispatch"
	"github.com/codefionn/pytools/internal/formatter"
	"github.com/codefionn/pytools/internal/logger"
	"github.com/codefionn/pytools/internal/rpc"
)

// Completer produces completion candidates.
type Completer interface {
	Complete(ctx context.Context, source string, row, column int) ([]rpc.CompletionItem, error)
}

// Hoverer documents the symbol under the cursor.
type Hoverer interface {
	Hover(ctx context.Context, source string, row, column int) (rpc.MarkupContent, error)
}

// Linter reports problems in a document.
type Linter interface {
	Diagnose(ctx context.Context, source, path string) ([]rpc.Diagnostic, error)
}

// Formatter returns the formatted form of a document.
type Formatter interface {
	Format(ctx context.Context, source string) (string, error)
}

// availability is implemented by backends that may be compiled out.
type availability interface {
	Available() bool
}

// Backends are the analysis engines behind the feature methods. A nil
// backend disables its feature.
type Backends struct {
	Completer Completer
	Hoverer   Hoverer
	Linter    Linter
	Formatter Formatter
}

// Service implements the methods of the analysis server.
type Service struct {
	workspace *WorkspaceManager
	backends  Backends
	log       *logger.Logger
}

// NewService creates the service.
func NewService(workspace *WorkspaceManager, backends Backends) *Service {
	return &Service{
		workspace: workspace,
		backends:  backends,
		log:       logger.Global().WithPrefix("service"),
	}
}

// Register installs every method on r and verifies that none is missing.
func (s *Service) Register(r *dispatch.Registry) error {
	r.Register(rpc.MethodPing, s.ping)
	r.Register(rpc.MethodInitialize, s.initialize)
	r.Register(rpc.MethodChangeWorkspace, s.changeWorkspace)
	r.RegisterTerminal(rpc.MethodShutdown, s.shutdown)
	r.RegisterTerminal(rpc.MethodExit, s.exit)
	r.Register(rpc.MethodCompletion, s.completion)
	r.Register(rpc.MethodHover, s.hover)
	r.Register(rpc.MethodFormatting, s.formatting)
	r.Register(rpc.MethodDiagnostics, s.diagnostics)
	return r.Verify(rpc.KnownMethods()...)
}

// Capabilities reports which features are served.
func (s *Service) Capabilities() rpc.Capabilities {
	return rpc.Capabilities{
		DocumentCompletion:        s.serves(rpc.MethodCompletion),
		DocumentHover:             s.serves(rpc.MethodHover),
		DocumentFormatting:        s.serves(rpc.MethodFormatting),
		DocumentPublishDiagnostic: s.serves(rpc.MethodDiagnostics),
	}
}

func (s *Service) serves(method rpc.Method) bool {
	var backend any
	switch method {
	case rpc.MethodCompletion:
		backend = s.backends.Completer
	case rpc.MethodHover:
		backend = s.backends.Hoverer
	case rpc.MethodFormatting:
		backend = s.backends.Formatter
	case rpc.MethodDiagnostics:
		backend = s.backends.Linter
	}
	if backend == nil {
		return false
	}
	if a, ok := backend.(availability); ok && !a.Available() {
		return false
	}
	return s.workspace.FeatureEnabled(method)
}

func (s *Service) ping(_ context.Context, params json.RawMessage) (any, error) {
	return params, nil
}

// initialize accepts null params and a missing or null workspace; the
// server is then initialized without one.
func (s *Service) initialize(ctx context.Context, params json.RawMessage) (any, error) {
	var p rpc.InitializeParams
	if !isNull(params) {
		if err := dispatch.DecodeParams(params, &p); err != nil {
			return nil, err
		}
	}
	s.workspace.Initialize(ctx, p.Workspace.Path, p.Features)
	return s.Capabilities(), nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func (s *Service) changeWorkspace(ctx context.Context, params json.RawMessage) (any, error) {
	var p rpc.ChangeWorkspaceParams
	if err := dispatch.DecodeParams(params, &p, "path"); err != nil {
		return nil, err
	}
	return nil, s.workspace.Change(ctx, p.Path)
}

func (s *Service) shutdown(context.Context, json.RawMessage) (any, error) {
	s.log.Info("Shutdown requested")
	return nil, nil
}

func (s *Service) exit(context.Context, json.RawMessage) (any, error) {
	s.log.Info("Exit requested, resetting project")
	s.workspace.Reset()
	return nil, nil
}

// ready checks the preconditions shared by every feature method.
func (s *Service) ready(method rpc.Method) error {
	if !s.workspace.Initialized() {
		return fmt.Errorf("%s: %w", method, dispatch.ErrNotInitialized)
	}
	if !s.serves(method) {
		return rpc.NewError(rpc.CodeMethodError, "%s is not available", method)
	}
	return nil
}

func (s *Service) completion(ctx context.Context, params json.RawMessage) (any, error) {
	if err := s.ready(rpc.MethodCompletion); err != nil {
		return nil, err
	}
	var p rpc.PositionParams
	if err := dispatch.DecodeParams(params, &p, "source", "row", "column"); err != nil {
		return nil, err
	}
	items, err := s.backends.Completer.Complete(ctx, p.Source, p.Row, p.Column)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []rpc.CompletionItem{}
	}
	return items, nil
}

func (s *Service) hover(ctx context.Context, params json.RawMessage) (any, error) {
	if err := s.ready(rpc.MethodHover); err != nil {
		return nil, err
	}
	var p rpc.PositionParams
	if err := dispatch.DecodeParams(params, &p, "source", "row", "column"); err != nil {
		return nil, err
	}
	content, err := s.backends.Hoverer.Hover(ctx, p.Source, p.Row, p.Column)
	if err != nil {
		return nil, err
	}
	return rpc.HoverResult{Content: content}, nil
}

func (s *Service) formatting(ctx context.Context, params json.RawMessage) (any, error) {
	if err := s.ready(rpc.MethodFormatting); err != nil {
		return nil, err
	}
	var p rpc.FormattingParams
	if err := dispatch.DecodeParams(params, &p, "source"); err != nil {
		return nil, err
	}
	formatted, err := s.backends.Formatter.Format(ctx, p.Source)
	if err != nil {
		return nil, err
	}
	diff, err := formatter.Diff(p.Source, formatted)
	if err != nil {
		return nil, err
	}
	return rpc.FormattingResult{Diff: diff}, nil
}

func (s *Service) diagnostics(ctx context.Context, params json.RawMessage) (any, error) {
	if err := s.ready(rpc.MethodDiagnostics); err != nil {
		return nil, err
	}
	var p rpc.DiagnosticParams
	if err := dispatch.DecodeParams(params, &p, "path"); err != nil {
		return nil, err
	}

	source := p.Source
	if source == "" {
		data, err := os.ReadFile(s.workspace.ResolvePath(p.Path))
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", p.Path, err)
		}
		source = string(data)
	}

	diags, err := s.backends.Linter.Diagnose(ctx, source, p.Path)
	if err != nil {
		return nil, err
	}
	if diags == nil {
		diags = []rpc.Diagnostic{}
	}
	return diags, nil
}
