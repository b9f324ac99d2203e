package tracker

import "fmt"

// Record is the capability a staged value must provide.
// Identity is used for logging and per-delete outcomes only; matching rows
// in the store is the session's job.
type Record interface {
	Identity() string
}

// Counts holds the lengths of the insert, update and delete sequences.
type Counts struct {
	Inserts int `json:"inserts"`
	Updates int `json:"updates"`
	Deletes int `json:"deletes"`
}

// Total returns the sum of all three counts.
func (c Counts) Total() int {
	return c.Inserts + c.Updates + c.Deletes
}

func (c Counts) String() string {
	return fmt.Sprintf("inserts=%d updates=%d deletes=%d", c.Inserts, c.Updates, c.Deletes)
}
