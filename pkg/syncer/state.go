package syncer

// State is the position of one bookmark in the sync pipeline
type State int

const (
	StateDiscovered State = iota
	StateSkipped
	StateMediaFetching
	StateMediaFetched
	StateMediaPartial
	StateRendering
	StateRendered
	StateCommitted
	StateFailed
)

var stateNames = [...]string{
	StateDiscovered:    "discovered",
	StateSkipped:       "skipped",
	StateMediaFetching: "media_fetching",
	StateMediaFetched:  "media_fetched",
	StateMediaPartial:  "media_partial",
	StateRendering:     "rendering",
	StateRendered:      "rendered",
	StateCommitted:     "committed",
	StateFailed:        "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition follows s
func (s State) Terminal() bool {
	return s == StateSkipped || s == StateCommitted || s == StateFailed
}
