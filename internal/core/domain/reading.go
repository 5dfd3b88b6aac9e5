package domain

import "strconv"

// Height is a block height reading that may have failed.
// A failed read and a chain at genesis both count as 0 in ratio math,
// but Available keeps them apart.
type Height struct {
	Value     uint64
	Available bool
}

// At returns an available height.
func At(v uint64) Height {
	return Height{Value: v, Available: true}
}

// Unavailable returns the marker for a failed or missing read.
func Unavailable() Height {
	return Height{}
}

// Int returns the height, or 0 when unavailable.
func (h Height) Int() uint64 {
	if !h.Available {
		return 0
	}
	return h.Value
}

func (h Height) String() string {
	if !h.Available {
		return "n/a"
	}
	return strconv.FormatUint(h.Value, 10)
}

// Source names one of the three height sources.
type Source string

const (
	SourceAuthoritative Source = "authoritative"
	SourceFast          Source = "fast"
	SourceDownstream    Source = "downstream"
)

// ChainReading is one snapshot of a chain for a single poll cycle.
type ChainReading struct {
	ChainID         ChainID
	Authoritative   Height
	FastIndexer     Height
	Downstream      Height
	EventsProcessed *uint64
}
