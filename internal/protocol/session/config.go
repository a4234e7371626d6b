package session

import "time"

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines transport and retry defaults for one framed connection.
type Config struct {
	DialTimeout time.Duration
	// ReadTimeout bounds how long Recv waits for the next frame. Zero waits
	// until the context ends.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// PollInterval is the deadline put on each socket read or write. When it
	// expires the adapter reports frame.ErrWouldBlock. Zero means blocking
	// I/O.
	PollInterval time.Duration
	Backoff      BackoffConfig
	TLS          TLSConfig
	// AuthToken is sent as a bearer token by DialWebSocket.
	AuthToken string
}

func DefaultConfig() Config {
	return Config{
		DialTimeout:  5 * time.Second,
		ReadTimeout:  0,
		WriteTimeout: 15 * time.Second,
		PollInterval: 100 * time.Millisecond,
		Backoff: BackoffConfig{
			InitialDelay: time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     50 * time.Millisecond,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero fields from DefaultConfig. ReadTimeout and
// PollInterval keep their zero meaning and are left alone.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff.InitialDelay = d.Backoff.InitialDelay
	}
	if c.Backoff.Multiplier < 1.0 {
		c.Backoff.Multiplier = d.Backoff.Multiplier
	}
	if c.Backoff.MaxDelay <= 0 {
		c.Backoff.MaxDelay = d.Backoff.MaxDelay
	}
	return c
}
