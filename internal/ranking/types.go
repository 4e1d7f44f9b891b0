// Package ranking holds the types shared by every stage of the contest pipeline.
package ranking

import "time"

// Origin tags where a RawDocument was acquired from.
type Origin string

const (
	OriginDirect   Origin = "direct"
	OriginRendered Origin = "rendered"
)

// Policy controls how a single contest is acquired.
type Policy struct {
	// DirectTimeout bounds each endpoint request.
	DirectTimeout time.Duration
	// RenderTimeout bounds how long the rendered fetch waits for the ranking table.
	RenderTimeout time.Duration
	// FallbackEnabled allows the rendered fetch when every endpoint failed.
	FallbackEnabled bool
}

// DefaultPolicy mirrors the timeouts the crawler has always used.
func DefaultPolicy() Policy {
	return Policy{
		DirectTimeout:   15 * time.Second,
		RenderTimeout:   15 * time.Second,
		FallbackEnabled: true,
	}
}

// RawDocument is a fetched payload and its provenance.
type RawDocument struct {
	ContestID   string
	URL         string
	Body        []byte
	ContentType string
	Origin      Origin
	Status      int
}

// ProblemResult is one participant's outcome on one problem column.
type ProblemResult struct {
	Label    string
	Attempts int
	// AcceptedTime is empty when the problem was not accepted.
	AcceptedTime string
	// Raw is the cell text as displayed by the source.
	Raw string
}

// Accepted reports whether the problem was solved.
func (p ProblemResult) Accepted() bool {
	return p.AcceptedTime != ""
}

// Record is one normalized ranking row.
type Record struct {
	Rank     int
	Team     string
	Score    int
	Penalty  int
	Solved   int
	Problems []ProblemResult
}

// State is a step of the per-contest state machine.
type State string

const (
	StatePending          State = "PENDING"
	StateFetchingDirect   State = "FETCHING_DIRECT"
	StateFetchingRendered State = "FETCHING_RENDERED"
	StateParsing          State = "PARSING"
	StateDone             State = "DONE"
	StateFailed           State = "FAILED"
)

// ContestResult is either the records of a contest or the reason it failed.
type ContestResult struct {
	ContestID string
	// Problems are the per-problem column labels, in source order.
	Problems []string
	Records  []Record
	Origin   Origin
	// DroppedRows counts rows whose rank could not be parsed.
	DroppedRows int

	State State
	// Trace is every state visited, in order.
	Trace []State
	Err   error
}

// Ok reports whether the contest finished in DONE.
func (r ContestResult) Ok() bool {
	return r.Err == nil && r.State == StateDone
}
