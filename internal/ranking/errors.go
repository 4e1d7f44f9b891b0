package ranking

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrRenderTimeout       = errors.New("rendered page did not show a ranking table in time")
	ErrNoRankingTableFound = errors.New("no ranking table found")
	ErrEmptyRanking        = errors.New("every ranking row failed to parse")
)

// TransportError is a connection level failure (dns, timeout, reset).
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error on %s: %s", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// EndpointError carries the status of the last candidate endpoint that answered.
type EndpointError struct {
	URL    string
	Status int
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("endpoint %s answered %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

// RenderSessionError means the headless browser could not be started.
type RenderSessionError struct {
	Err error
}

func (e *RenderSessionError) Error() string {
	return fmt.Sprintf("start render session: %s", e.Err)
}

func (e *RenderSessionError) Unwrap() error {
	return e.Err
}

// RowParseError is row-local: the row is dropped and the contest continues. Row is the
// 1-based position among the data rows of the table.
type RowParseError struct {
	Row  int
	Cell string
	Err  error
}

func (e *RowParseError) Error() string {
	return fmt.Sprintf("row %d: cell %q: %s", e.Row, e.Cell, e.Err)
}

func (e *RowParseError) Unwrap() error {
	return e.Err
}

// Reason renders a short human readable reason for a contest failure.
func Reason(err error) string {
	var transport *TransportError
	var endpoint *EndpointError
	var session *RenderSessionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &transport):
		return "could not connect to the contest site"
	case errors.As(err, &endpoint):
		return fmt.Sprintf("contest site answered %d", endpoint.Status)
	case errors.As(err, &session):
		return "headless browser could not be started"
	case errors.Is(err, ErrRenderTimeout):
		return "rendered page never showed a ranking"
	case errors.Is(err, ErrNoRankingTableFound):
		return "no ranking table on the page (contest may be private or empty)"
	case errors.Is(err, ErrEmptyRanking):
		return "ranking rows could not be parsed"
	}
	return err.Error()
}
