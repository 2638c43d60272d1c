package aggregator

// State is the stage an aggregation run is in.
type State int

const (
	Idle State = iota
	FetchingAll
	Normalizing
	Deduplicating
	FilteringRecency
	Backfilling
	Done
)

var stateNames = map[State]string{
	Idle:             "idle",
	FetchingAll:      "fetching_all",
	Normalizing:      "normalizing",
	Deduplicating:    "deduplicating",
	FilteringRecency: "filtering_recency",
	Backfilling:      "backfilling",
	Done:             "done",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
