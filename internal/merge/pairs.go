package merge

// Pair is a citing/cited pair of canonical ids.
type Pair struct {
	Citing string
	Cited  string
}

// PairSet records which citing/cited pairs have already been emitted, so a
// citation reached through several identifier combinations is added once.
type PairSet struct {
	seen map[Pair]struct{}
}

// NewPairSet creates an empty set.
func NewPairSet() *PairSet {
	return &PairSet{seen: make(map[Pair]struct{})}
}

// Add inserts the pair and reports whether it was new.
func (s *PairSet) Add(citing, cited string) bool {
	p := Pair{Citing: citing, Cited: cited}
	if _, ok := s.seen[p]; ok {
		return false
	}
	s.seen[p] = struct{}{}
	return true
}

// Len returns the number of distinct pairs.
func (s *PairSet) Len() int {
	return len(s.seen)
}
