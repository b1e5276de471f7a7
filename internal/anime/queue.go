package anime

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

var episodeSuffix = regexp.MustCompile(`_\d.*$`)

var _ Searcher = (*Queue)(nil)

// Queue is a static list of records, usually read from a queue file.
type Queue struct {
	Entries []Anime
}

// ParseQueue reads one record per line: `URL [start-end] [name]`.
// Empty lines and lines starting with '#' are ignored, ` #` starts a trailing comment.
func ParseQueue(r io.Reader) (*Queue, error) {
	q := &Queue{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if before, _, found := strings.Cut(line, " #"); found {
			line = strings.TrimSpace(before)
			slog.Debug("Removed comment from line", "line", line)
		}

		entry, err := parseQueueLine(line)
		if err != nil {
			return nil, fmt.Errorf("queue line %d: %w", lineNo, err)
		}
		q.Entries = append(q.Entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}
	return q, nil
}

func parseQueueLine(line string) (Anime, error) {
	fields := strings.Fields(line)
	entry := Anime{OriginURL: fields[0]}
	if _, err := url.ParseRequestURI(entry.OriginURL); err != nil {
		return Anime{}, fmt.Errorf("invalid url %q: %w", entry.OriginURL, err)
	}

	rest := fields[1:]
	if len(rest) > 0 {
		if r, err := ParseRange(rest[0]); err == nil {
			entry.EpisodeRange = &r
			rest = rest[1:]
		}
	}

	entry.Name = strings.Join(rest, " ")
	if entry.Name == "" {
		entry.Name = NameFromURL(entry.OriginURL)
	}
	return entry, nil
}

// Search returns every entry whose name fuzzily matches query. An empty query matches all.
func (q *Queue) Search(_ context.Context, query string) ([]Anime, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return q.Entries, nil
	}

	var matches []Anime
	for _, a := range q.Entries {
		if fuzzy.MatchNormalizedFold(query, a.Name) {
			matches = append(matches, a)
		}
	}
	return matches, nil
}

// ParseRange parses "12" or "1-12".
func ParseRange(s string) (Range, error) {
	s = strings.ReplaceAll(s, " ", "")
	begin, end, isRange := strings.Cut(s, "-")
	start, err := strconv.ParseUint(begin, 10, 32)
	if err != nil {
		return Range{}, fmt.Errorf("invalid range start %q: %w", begin, err)
	}
	if !isRange {
		return Range{Start: uint32(start), End: uint32(start)}, nil
	}
	stop, err := strconv.ParseUint(end, 10, 32)
	if err != nil {
		return Range{}, fmt.Errorf("invalid range end %q: %w", end, err)
	}
	if start > stop {
		return Range{}, fmt.Errorf("range start cannot be bigger than range end: %s", s)
	}
	return Range{Start: uint32(start), End: uint32(stop)}, nil
}

// NameFromURL guesses a series name from an episode URL, e.g.
// ".../Sousou_no_Frieren_05.mp4" -> "Sousou no Frieren".
func NameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return u.Hostname()
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	base = episodeSuffix.ReplaceAllString(base, "")
	return strings.TrimSpace(strings.ReplaceAll(base, "_", " "))
}
