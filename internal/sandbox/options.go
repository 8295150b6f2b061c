package sandbox

import (
	"log/slog"
	"time"
)

// Defaults applied when no option overrides them.
const (
	DefaultTimeout      = 5 * time.Second
	DefaultMemoryLimit  = 128 << 20
	DefaultMaxCallStack = 1000
	DefaultProgramCache = 512
)

// Observer receives lifecycle events, typically to feed metrics.
type Observer interface {
	SandboxBuilt(elapsed time.Duration)
	EvaluationDone(outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) SandboxBuilt(time.Duration)           {}
func (nopObserver) EvaluationDone(string, time.Duration) {}

type settings struct {
	timeout      time.Duration
	memoryLimit  uint64
	maxCallStack int
	cacheSize    int
	logger       *slog.Logger
	observer     Observer
}

func defaultSettings() settings {
	return settings{
		timeout:      DefaultTimeout,
		memoryLimit:  DefaultMemoryLimit,
		maxCallStack: DefaultMaxCallStack,
		cacheSize:    DefaultProgramCache,
		logger:       slog.Default(),
		observer:     nopObserver{},
	}
}

func newSettings(opts []Option) settings {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures a Builder or an Engine.
type Option func(*settings)

// WithTimeout sets the wall-clock budget used when the caller supplies no
// deadline of its own.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMemoryLimit sets the allocation budget in bytes for one evaluation.
// Zero disables it.
func WithMemoryLimit(bytes uint64) Option {
	return func(s *settings) {
		s.memoryLimit = bytes
	}
}

// WithMaxCallStackSize bounds recursion depth inside the runtime.
func WithMaxCallStackSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxCallStack = n
		}
	}
}

// WithProgramCache sets how many compiled user scripts an Engine keeps.
func WithProgramCache(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.cacheSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver registers lifecycle callbacks.
func WithObserver(o Observer) Option {
	return func(s *settings) {
		if o != nil {
			s.observer = o
		}
	}
}
