package ranks

// Rank is a tier on the ladder, ordered from Iron up to TodoMaster.
type Rank string

const (
	Iron       Rank = "iron"
	Silver     Rank = "silver"
	Gold       Rank = "gold"
	Diamond    Rank = "diamond"
	Platinum   Rank = "platinum"
	TodoMaster Rank = "todo_master"
)

// Order lists the ranks from lowest to highest.
var Order = []Rank{Iron, Silver, Gold, Diamond, Platinum, TodoMaster}

// Threshold describes the completed-task range a rank covers.
// Max < 0 means the range is unbounded.
type Threshold struct {
	Min         int
	Max         int
	DisplayName string
	Color       string
}

var thresholds = map[Rank]Threshold{
	Iron:       {Min: 0, Max: 9, DisplayName: "Iron", Color: "#9CA3AF"},
	Silver:     {Min: 10, Max: 24, DisplayName: "Silver", Color: "#C0C0C0"},
	Gold:       {Min: 25, Max: 49, DisplayName: "Gold", Color: "#FFD700"},
	Diamond:    {Min: 50, Max: 99, DisplayName: "Diamond", Color: "#B9F2FF"},
	Platinum:   {Min: 100, Max: 199, DisplayName: "Platinum", Color: "#E5E4E2"},
	TodoMaster: {Min: 200, Max: -1, DisplayName: "Todo Master", Color: "#DC2626"},
}

// ThresholdOf returns the threshold of the given rank,
// falling back to the Iron threshold for unknown ranks.
func ThresholdOf(r Rank) Threshold {
	t, ok := thresholds[r]
	if !ok {
		return thresholds[Iron]
	}
	return t
}

func (r Rank) Valid() bool {
	_, ok := thresholds[r]
	return ok
}

// Index returns the position of the rank on the ladder, -1 for unknown ranks.
func (r Rank) Index() int {
	for i, rank := range Order {
		if rank == r {
			return i
		}
	}
	return -1
}

// IsMax reports whether the rank is the top of the ladder.
func (r Rank) IsMax() bool {
	return r == Order[len(Order)-1]
}

// For returns the rank whose range contains count.
// Negative counts are treated as zero. The ranges partition the
// non-negative integers, so the Iron fallback is unreachable.
func For(count int) Rank {
	if count < 0 {
		count = 0
	}
	for _, rank := range Order {
		t := thresholds[rank]
		if count >= t.Min && (t.Max < 0 || count <= t.Max) {
			return rank
		}
	}
	return Iron
}

// Transition records a rank boundary crossing.
type Transition struct {
	From Rank
	To   Rank
}

// Detect compares the ranks implied by the previous and the new count
// and returns the crossing, or nil when no boundary was crossed.
func Detect(prevCount, newCount int) *Transition {
	from := For(prevCount)
	to := For(newCount)
	if from == to {
		return nil
	}
	return &Transition{From: from, To: to}
}

// Progress describes how far into the current rank a count is.
type Progress struct {
	Current     Rank
	Next        Rank
	Percent     int
	TasksToNext int
	IsMax       bool
}

// ProgressOf computes progress toward the next rank. At the top of the
// ladder Percent is 100, TasksToNext is 0 and Next is empty.
func ProgressOf(count int) Progress {
	if count < 0 {
		count = 0
	}

	current := For(count)
	if current.IsMax() {
		return Progress{
			Current: current,
			Percent: 100,
			IsMax:   true,
		}
	}

	next := Order[current.Index()+1]
	t := thresholds[current]

	rangeSize := t.Max - t.Min + 1
	consumed := count - t.Min
	percent := (consumed*100 + rangeSize/2) / rangeSize
	if percent > 100 {
		percent = 100
	}

	return Progress{
		Current:     current,
		Next:        next,
		Percent:     percent,
		TasksToNext: thresholds[next].Min - count,
	}
}

// ApplyToggle is the completion-flag transition table: it maps a flag
// change to the lifetime counter delta and whether the crossing detector
// runs. Only the upward flip runs the detector; the downward flip is a
// counter correction that leaves the stored rank as a high-water mark.
func ApplyToggle(wasCompleted, nowCompleted bool) (delta int, runDetector bool) {
	switch {
	case !wasCompleted && nowCompleted:
		return 1, true
	case wasCompleted && !nowCompleted:
		return -1, false
	default:
		return 0, false
	}
}
