package rpc

// Method names a server operation.
type Method string

const (
	MethodPing            Method = "ping"
	MethodShutdown        Method = "shutdown"
	MethodExit            Method = "exit"
	MethodInitialize      Method = "initialize"
	MethodChangeWorkspace Method = "change_workspace"
	MethodCompletion      Method = "document_completion"
	MethodHover           Method = "document_hover"
	MethodFormatting      Method = "document_formatting"
	MethodDiagnostics     Method = "document_publish_diagnostic"
)

var knownMethods = []Method{
	MethodPing,
	MethodShutdown,
	MethodExit,
	MethodInitialize,
	MethodChangeWorkspace,
	MethodCompletion,
	MethodHover,
	MethodFormatting,
	MethodDiagnostics,
}

// KnownMethods returns every method the server must serve.
func KnownMethods() []Method {
	out := make([]Method, len(knownMethods))
	copy(out, knownMethods)
	return out
}

// Known reports whether m is one of KnownMethods.
func (m Method) Known() bool {
	for _, k := range knownMethods {
		if k == m {
			return true
		}
	}
	return false
}

// Terminal reports whether the server stops after answering m.
func (m Method) Terminal() bool {
	return m == MethodShutdown || m == MethodExit
}

// Feature reports whether m requires an initialized project.
func (m Method) Feature() bool {
	switch m {
	case MethodCompletion, MethodHover, MethodFormatting, MethodDiagnostics:
		return true
	}
	return false
}
