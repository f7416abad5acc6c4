package domain

import (
	"math/bits"
	"time"
)

// Compiled defaults for services and server ports.
// These can be overridden via configuration.
const (
	// Service limits
	DefaultMaxServers                   = 2  // Servers a single service accepts concurrently
	DefaultMaxLoanedResponsesPerRequest = 2  // Outstanding response loans per inbound request
	DefaultInitialMaxSliceLen           = 1  // Elements per response before the loan pool grows
	MaxServiceNameLength                = 255

	// Data segment sizing
	DefaultResponseElementSize = 64 * 1024 // Bytes reserved per response element
	MinInterProcessSegmentSize = 4096      // One page, smallest mappable shared segment
	DefaultMaxSegmentSize      = 1 << 30   // Largest segment a single server may request
	MaxSegmentSizeCeiling      = 1 << min(47, bits.UintSize-2)

	// Graceful shutdown
	GracefulShutdownTimeout = 30 * time.Second       // Max time to drain connections on shutdown
	ShutdownDrainDelay      = 500 * time.Millisecond // Let health checks report draining before stopping
	ShutdownHTTPTimeout     = 10 * time.Second
	ShutdownOTELTimeout     = 5 * time.Second
)
