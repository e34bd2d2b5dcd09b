package delivery

import "time"

// Hard upper bounds on caller supplied retry policies. These bound the
// worst case resource usage of a single delivery and are not configurable.
const (
	MaxRetryAttempts = 10
	MaxRetryDelayCap = 5 * time.Minute
)

const (
	defaultAckTimeout        = 30 * time.Second
	defaultInitialRetryDelay = 15 * time.Second
)

// Policy carries the per-delivery acknowledgement parameters. The zero value
// of any field falls back to a sane default; MaxRetries and MaxRetryDelay
// are clamped to the hard caps regardless of what the caller asks for.
type Policy struct {
	AckTimeout        time.Duration
	MaxRetries        int
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration

	// CorrelationID distinguishes concurrent deliveries to the same device.
	// Generated when empty.
	CorrelationID string

	// ResponseRequired asks the device for an application level response in
	// addition to the transport acknowledgement.
	ResponseRequired bool
}

func (p Policy) normalized() Policy {
	if p.AckTimeout <= 0 {
		p.AckTimeout = defaultAckTimeout
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.MaxRetries > MaxRetryAttempts {
		p.MaxRetries = MaxRetryAttempts
	}
	if p.InitialRetryDelay <= 0 {
		p.InitialRetryDelay = defaultInitialRetryDelay
	}
	if p.MaxRetryDelay <= 0 || p.MaxRetryDelay > MaxRetryDelayCap {
		p.MaxRetryDelay = MaxRetryDelayCap
	}
	if p.InitialRetryDelay > p.MaxRetryDelay {
		p.InitialRetryDelay = p.MaxRetryDelay
	}
	return p
}

func nextRetryDelay(current time.Duration, maxDelay time.Duration) time.Duration {
	doubled := current * 2
	if doubled > maxDelay {
		return maxDelay
	}
	return doubled
}
