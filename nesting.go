package fffc

// NestingContext carries the identifier counters mutator synthesis
// threads through nested anonymous aggregates, kept as an explicit
// per-synthesis parameter rather than process-wide state. A fresh
// NestingContext is created for every top-level type the mutator
// synthesizer specializes, and threaded by pointer through every
// recursive call for nested anonymous members; without the reset at
// each top-level boundary, identifier collisions occur across
// otherwise-independent mutators.
type NestingContext struct {
	TmpCount    int
	RndCount    int
	ValuesCount int
}

// NewNestingContext returns a zeroed context for one top-level
// mutator's synthesis.
func NewNestingContext() *NestingContext {
	return &NestingContext{}
}

// NextTmp returns a fresh, nesting-unique suffix for a local temporary
// identifier (e.g. the bitfield copy "fffc_bf_3"), and advances the
// counter.
func (n *NestingContext) NextTmp() int {
	v := n.TmpCount
	n.TmpCount++
	return v
}

// NextRnd returns a fresh, nesting-unique suffix for a local
// random-pick identifier (e.g. "fffc_rnd_2"), and advances the counter.
func (n *NestingContext) NextRnd() int {
	v := n.RndCount
	n.RndCount++
	return v
}

// NextValues returns a fresh, nesting-unique suffix for a local
// values[] array identifier (e.g. "fffc_values_0") used by inlined
// anonymous-enum members, and advances the counter.
func (n *NestingContext) NextValues() int {
	v := n.ValuesCount
	n.ValuesCount++
	return v
}
