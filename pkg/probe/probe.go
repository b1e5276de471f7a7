// Package probe discovers the episode range of a series with existence checks.
package probe

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/bugmaschine/epfetch/internal/anime"
	"github.com/bugmaschine/epfetch/pkg/urltemplate"
)

// ErrNoPlaceholder is returned for templates that represent a single fixed URL.
var ErrNoPlaceholder = errors.New("url has no episode field")

type Prober struct {
	checker Checker
}

func New(checker Checker) *Prober {
	return &Prober{checker: checker}
}

// Probe finds the highest existing episode by doubling from index 2 and then
// binary searching between the last hit and the first miss. Index 1 is the
// episode the user already has. When floor is 1 index 0 is checked as well,
// any other floor is used as the range start as-is.
//
// A failed check only means "absent". The only error returned besides
// ErrNoPlaceholder is the context's.
func (p *Prober) Probe(ctx context.Context, tmpl urltemplate.Template, floor uint32) (anime.Range, error) {
	if !tmpl.HasPlaceholder() {
		return anime.Range{}, ErrNoPlaceholder
	}

	exists := func(index uint64) (bool, error) {
		if index > math.MaxUint32 {
			return false, nil
		}
		ok := p.checker.Exists(ctx, tmpl.Instantiate(uint32(index)))
		if err := ctx.Err(); err != nil {
			return false, err
		}
		slog.Debug("Probed episode", "index", index, "exists", ok)
		return ok, nil
	}

	counter := uint64(2)
	for {
		ok, err := exists(counter)
		if err != nil {
			return anime.Range{}, err
		}
		if !ok {
			break
		}
		counter *= 2
	}

	bad, last := counter, counter/2
	for bad != last+1 {
		mid := (bad + last) / 2
		ok, err := exists(mid)
		if err != nil {
			return anime.Range{}, err
		}
		if ok {
			last = mid
		} else {
			bad = mid
		}
	}

	start := floor
	if floor == 1 {
		ok, err := exists(0)
		if err != nil {
			return anime.Range{}, err
		}
		if ok {
			start = 0
		}
	}

	r := anime.Range{Start: start, End: uint32(last)}
	slog.Debug("Discovered episode range", "template", tmpl.Raw, "range", r.String())
	return r, nil
}
