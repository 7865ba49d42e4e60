package paginator

import "time"

// Tuning holds the paging heuristics. Zero fields take the defaults below.
type Tuning struct {
	PageSize int `yaml:"page_size"`
	// SkipAttemptCap bounds consecutive empty pages per session before the
	// session gives up with ExhaustedSkipCap.
	SkipAttemptCap int   `yaml:"skip_attempt_cap"`
	SkipBuffer     int64 `yaml:"skip_buffer"`
	MinimumSkip    int64 `yaml:"minimum_skip"`
	// SettleDelay approximates "the visitor looked at the page". It is a
	// heuristic with no measured link to attention.
	SettleDelay time.Duration `yaml:"settle_delay"`
	// CommitCeiling is the largest batch span committed to history.
	CommitCeiling int64 `yaml:"commit_ceiling"`
	// MaxSessions bounds live sessions per process; the least recently used
	// one is closed when a new one would exceed it.
	MaxSessions int `yaml:"max_sessions"`
	// PagesKept is how many settled pages a session retains.
	PagesKept int `yaml:"pages_kept"`
}

const (
	DefaultPageSize       = 24
	DefaultSkipAttemptCap = 10
	DefaultSkipBuffer     = 100
	DefaultMinimumSkip    = 100
	DefaultSettleDelay    = 2 * time.Second
	DefaultCommitCeiling  = 100
	DefaultMaxSessions    = 4096
	DefaultPagesKept      = 50
)

func DefaultTuning() Tuning {
	return Tuning{
		PageSize:       DefaultPageSize,
		SkipAttemptCap: DefaultSkipAttemptCap,
		SkipBuffer:     DefaultSkipBuffer,
		MinimumSkip:    DefaultMinimumSkip,
		SettleDelay:    DefaultSettleDelay,
		CommitCeiling:  DefaultCommitCeiling,
		MaxSessions:    DefaultMaxSessions,
		PagesKept:      DefaultPagesKept,
	}
}

// WithDefaults returns t with every non-positive field replaced by its default.
func (t Tuning) WithDefaults() Tuning {
	d := DefaultTuning()
	if t.PageSize <= 0 {
		t.PageSize = d.PageSize
	}
	if t.SkipAttemptCap <= 0 {
		t.SkipAttemptCap = d.SkipAttemptCap
	}
	if t.SkipBuffer <= 0 {
		t.SkipBuffer = d.SkipBuffer
	}
	if t.MinimumSkip <= 0 {
		t.MinimumSkip = d.MinimumSkip
	}
	if t.SettleDelay <= 0 {
		t.SettleDelay = d.SettleDelay
	}
	if t.CommitCeiling <= 0 {
		t.CommitCeiling = d.CommitCeiling
	}
	if t.MaxSessions <= 0 {
		t.MaxSessions = d.MaxSessions
	}
	if t.PagesKept <= 0 {
		t.PagesKept = d.PagesKept
	}
	return t
}
