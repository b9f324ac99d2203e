package testutil

// FixedCycleID generates the same cycle id every time.
//
// Unlike tracker.FixedGenerator, which returns ids in sequence, this one
// never runs out; useful when a test applies an unknown number of cycles
// (for example under retry) and compares output byte for byte.
//
// Thread-safety: FixedCycleID is stateless and safe for concurrent use.
type FixedCycleID struct {
	id string
}

// NewFixedCycleID creates a fixed cycle id generator.
// If id is empty, Generate() returns "test-cycle-default".
func NewFixedCycleID(id string) *FixedCycleID {
	if id == "" {
		id = "test-cycle-default"
	}
	return &FixedCycleID{id: id}
}

// Generate returns the fixed id.
func (g *FixedCycleID) Generate() string {
	return g.id
}
