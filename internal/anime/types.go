package anime

import (
	"context"
	"fmt"
	"math"
)

// Range is an inclusive episode range. End < Start represents an empty range.
type Range struct {
	Start uint32
	End   uint32
}

func (r Range) Empty() bool {
	return r.End < r.Start
}

// Len returns the number of episodes covered by the range.
// Range{0, math.MaxUint32} holds 1<<32 of them.
func (r Range) Len() uint64 {
	if r.Empty() {
		return 0
	}
	return uint64(r.End) - uint64(r.Start) + 1
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Anime is the normalized record handed over by search collaborators.
type Anime struct {
	Name            string
	OriginURL       string
	EpisodeRange    *Range
	AnilistProgress *uint32
}

// NominalStart is the lowest episode the caller is interested in. Watched
// episodes are skipped when the record carries list progress.
func (a Anime) NominalStart() uint32 {
	if a.EpisodeRange != nil {
		return a.EpisodeRange.Start
	}
	if a.AnilistProgress != nil {
		if *a.AnilistProgress == math.MaxUint32 {
			return math.MaxUint32
		}
		return *a.AnilistProgress + 1
	}
	return 1
}

// Searcher is implemented by anything able to turn a query into records.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Anime, error)
}
