package telemetry

import (
	"fmt"
)

// API is an abstraction over logging/metrics so that tests can assert on what a component reported.
//
// note: fault injection point
type API interface {
	// ReportBroken reports a component that failed in a way that ends the work it was doing.
	//
	// The `id` names the **component** that broke (ex. `endpoint.fetch`), not the line that broke.
	// Details belong in params or in a wrapped error.
	//
	// Formatting rules:
	// 1) all lowercase
	// 2) use underscores for large components
	// 3) use dashes for methods part of a larger component
	ReportBroken(id string, params ...any)

	// ReportWarning reports something worth looking at that did not stop the work, like a
	// dropped ranking row.
	ReportWarning(id string, params ...any)

	// ReportDebug reports information that is only interesting with --verbose.
	ReportDebug(msg string, params ...any)

	// ReportCount reports the count of something at the current time.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with a namespace, like a sub-logger.
type ScopedAPI struct {
	namespace string
	inner     API
}

// NewScopedAPI creates a ScopedAPI out of a given namespace and another api.
func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(fmt.Sprintf("%s: %s", s.namespace, msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(fmt.Sprintf("%s: %s", s.namespace, id), count)
}
