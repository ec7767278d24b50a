package trace

// TraceSummary aggregates visit counts by action.
type TraceSummary struct {
	TotalVisits int
	ByAction    map[Action]int
	// ConsumedTwice lists cells consumed more than once; always empty for a
	// healthy scan.
	ConsumedTwice []VisitRecord
}

type cellKey struct {
	world   string
	x, y, z int
}

// Summarize computes counts over st.
func Summarize(st *ScanTrace) *TraceSummary {
	s := &TraceSummary{ByAction: make(map[Action]int)}
	if st == nil {
		return s
	}
	consumed := make(map[cellKey]bool)
	for _, v := range st.Visits {
		s.TotalVisits++
		s.ByAction[v.Action]++
		if v.Action != ActionConsumed {
			continue
		}
		k := cellKey{v.World, v.X, v.Y, v.Z}
		if consumed[k] {
			s.ConsumedTwice = append(s.ConsumedTwice, v)
		}
		consumed[k] = true
	}
	return s
}
