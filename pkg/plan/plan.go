// Package plan turns episode ranges or explicit URL lists into download jobs.
package plan

import (
	"errors"
	"fmt"

	"github.com/bugmaschine/epfetch/internal/anime"
	"github.com/bugmaschine/epfetch/pkg/download"
	"github.com/bugmaschine/epfetch/pkg/urltemplate"
)

var (
	// ErrEmptyPlan means nothing is left to download. Callers report it
	// instead of running an empty batch.
	ErrEmptyPlan = errors.New("no episodes to download")

	ErrDuplicateDestination = errors.New("two jobs share a destination")
)

// maxPrealloc caps the capacity reserved up front for huge ranges.
const maxPrealloc = 4096

// Entry is one planned URL. Episode is only meaningful when FromRange is set.
type Entry struct {
	URL       string
	Episode   uint32
	FromRange bool
}

// Range instantiates tmpl for every episode in r in ascending order, skipping
// the first offset episodes.
func Range(tmpl urltemplate.Template, r anime.Range, offset uint32) []Entry {
	if r.Empty() || uint64(offset) >= r.Len() {
		return nil
	}

	entries := make([]Entry, 0, min(r.Len()-uint64(offset), maxPrealloc))
	for i := uint64(r.Start) + uint64(offset); i <= uint64(r.End); i++ {
		entries = append(entries, Entry{
			URL:       tmpl.Instantiate(uint32(i)),
			Episode:   uint32(i),
			FromRange: true,
		})
	}
	return entries
}

// URLs passes an explicit list through in the given order, skipping the
// first offset entries.
func URLs(urls []string, offset uint32) []Entry {
	if uint64(offset) >= uint64(len(urls)) {
		return nil
	}
	entries := make([]Entry, 0, len(urls)-int(offset))
	for _, u := range urls[offset:] {
		entries = append(entries, Entry{URL: u})
	}
	return entries
}

type Options struct {
	Root       string
	Overwrite  bool
	SeriesName string
	// MaxEpisode pads episode numbers in labels.
	MaxEpisode uint32
}

// Jobs builds one job per entry. Destination file names must be unique
// within the plan since jobs write without coordinating.
func Jobs(entries []Entry, opts Options) ([]download.Job, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyPlan
	}

	name := download.PrepareSeriesNameForFile(opts.SeriesName)
	seen := make(map[string]string, len(entries))
	jobs := make([]download.Job, 0, len(entries))

	for _, e := range entries {
		job := download.Job{
			URL:       e.URL,
			Root:      opts.Root,
			Overwrite: opts.Overwrite,
		}

		// unparsable URLs are left to fail as their own job
		if dest, err := job.Destination(); err == nil {
			if other, ok := seen[dest]; ok {
				return nil, fmt.Errorf("%w: %s and %s -> %s", ErrDuplicateDestination, other, e.URL, dest)
			}
			seen[dest] = e.URL
		}

		if e.FromRange {
			job.Label = download.EpisodeLabel(name, e.Episode, opts.MaxEpisode)
		} else if name != "" {
			filename, _ := job.Filename()
			job.Label = name + " - " + filename
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
