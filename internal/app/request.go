package app

import (
	"errors"
	"math"

	"github.com/bugmaschine/epfetch/internal/anime"
)

var (
	ErrNoSource       = errors.New("provide either a URL, a queue file or a playlist")
	ErrManySources    = errors.New("a URL, a queue file and a playlist can not be combined")
	ErrSearchNoQueue  = errors.New("search needs a queue file")
	ErrRangeAndDetect = errors.New("an explicit episode range and auto detection can not be combined")
	ErrProgressNoURL  = errors.New("list progress only applies to a single URL")
	ErrProgressTooBig = errors.New("list progress leaves no episode to download")
)

// Request describes one invocation. Exactly one of URL, QueueFile and
// Playlist is set.
type Request struct {
	URL       string
	QueueFile string
	Playlist  string

	// Search filters queue entries by fuzzy name match.
	Search string

	Episodes *anime.Range
	Detect   bool
	// Offset skips the first episodes of the planned list, zero based.
	Offset uint32
	// Progress is the last watched episode. Detection starts after it.
	Progress *uint32
}

// Validate is the single precondition check run before anything is planned.
func (r Request) Validate() error {
	sources := 0
	for _, s := range []string{r.URL, r.QueueFile, r.Playlist} {
		if s != "" {
			sources++
		}
	}
	switch {
	case sources == 0:
		return ErrNoSource
	case sources > 1:
		return ErrManySources
	}

	if r.Search != "" && r.QueueFile == "" {
		return ErrSearchNoQueue
	}
	if r.Episodes != nil && r.Detect {
		return ErrRangeAndDetect
	}
	if r.Progress != nil {
		if r.URL == "" {
			return ErrProgressNoURL
		}
		if *r.Progress == math.MaxUint32 {
			return ErrProgressTooBig
		}
	}
	return nil
}
