// Package idgen provides ID generation utilities for the application.
// It encapsulates the ID generation implementation, making it easy to change
// the underlying ID generation strategy in the future.
package idgen

import (
	"github.com/rs/xid"
)

// fileSuffixLength is the number of trailing xid characters used in artifact file names.
// The tail of an xid carries the process id and counter, which keeps it unique per process.
const fileSuffixLength = 8

// NewID generates a new globally unique, sortable identifier.
// Returns a 20-character string using xid format.
func NewID() string {
	return xid.New().String()
}

// NewRequestID generates a unique ID for request tracking.
func NewRequestID() string {
	return NewID()
}

// NewFileSuffix returns a short unique token for generated artifact file names,
// e.g. chart_12_20250101_0930_<suffix>.png
func NewFileSuffix() string {
	id := NewID()
	return id[len(id)-fileSuffixLength:]
}
