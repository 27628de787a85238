package consts

import "time"

// Network defaults
const (
	// DefaultHost is the loopback interface the analysis server binds to
	DefaultHost = "localhost"
	// DefaultPort is the canonical analysis server port
	DefaultPort = 9005
)

// Buffer sizes for socket reads
const (
	// BufferSize1KB is the default chunk size for a single socket read
	BufferSize1KB = 1024
	// BufferSize64KB bounds the size of a frame header
	BufferSize64KB = 64 * 1024
	// BufferSize64MB is the default upper bound for a frame body
	BufferSize64MB = 64 * 1024 * 1024
)

// Timeouts for various operations
const (
	// Timeout1Second is the accept deadline used to poll for cancellation
	Timeout1Second = 1 * time.Second
	// Timeout5Seconds is the startup grace window of a spawned server
	Timeout5Seconds = 5 * time.Second
	// Timeout10Seconds is the default timeout for formatter subprocesses
	Timeout10Seconds = 10 * time.Second
	// Timeout30Seconds is the default client request timeout
	Timeout30Seconds = 30 * time.Second
)

// Process exit codes of the server executable
const (
	// ExitSuccess is returned after a clean shutdown
	ExitSuccess = 0
	// ExitError is returned for any failure not covered below
	ExitError = 1
	// ExitOSError is returned when the listen address is already in use
	ExitOSError = 123
)

// Lockfile staleness
const (
	// Duration1Hour marks a spawn lock as stale
	Duration1Hour = 1 * time.Hour
)
