package paginator

import (
	"fmt"
	"strings"
)

// Mode selects whether already-viewed photos are filtered out.
type Mode string

const (
	ModeUnseen Mode = "unseen"
	ModeAll    Mode = "all"
)

// ParseMode parses a mode query value. Empty input selects ModeUnseen.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeUnseen, nil
	case ModeUnseen, ModeAll:
		return m, nil
	default:
		return "", fmt.Errorf("paginator: unknown mode %q", s)
	}
}

func (m Mode) Valid() bool { return m == ModeUnseen || m == ModeAll }

// State is the position of a Session in its fetch cycle.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateFiltering
	StateSettled
	StateSkipComputed
	StateExhausted
	StateError
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateFetching:     "fetching",
	StateFiltering:    "filtering",
	StateSettled:      "settled",
	StateSkipComputed: "skip_computed",
	StateExhausted:    "exhausted",
	StateError:        "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ExhaustReason tells why a Session stopped producing pages. Both reasons
// render the same "seen everything" view.
type ExhaustReason string

const (
	ExhaustedNone            ExhaustReason = ""
	ExhaustedEndOfCollection ExhaustReason = "end_of_collection"
	ExhaustedSkipCap         ExhaustReason = "skip_cap"
)
