// Package urltemplate turns a concrete episode URL into a template that can
// produce the URL of any other episode of the same series.
package urltemplate

import (
	"fmt"
	"regexp"
	"strconv"
)

// Placeholder marks the episode field inside Template.Raw.
const Placeholder = "{episode}"

const defaultWidth = 2

// The episode field is the first underscore followed by at most three digits.
var episodeField = regexp.MustCompile(`_(\d{1,3})`)

type Template struct {
	// Raw is the source URL with the episode field replaced by Placeholder.
	Raw   string
	Index uint32
	Width int

	prefix      string
	suffix      string
	placeholder bool
}

// Extract parses url. If it has no episode field the returned template is a
// single fixed URL and HasPlaceholder reports false.
func Extract(url string) Template {
	loc := episodeField.FindStringSubmatchIndex(url)
	if loc == nil {
		return Template{Raw: url, prefix: url, Width: defaultWidth}
	}

	digits := url[loc[2]:loc[3]]
	index, _ := strconv.ParseUint(digits, 10, 32)

	return Template{
		Raw:         url[:loc[2]] + Placeholder + url[loc[3]:],
		Index:       uint32(index),
		Width:       len(digits),
		prefix:      url[:loc[2]],
		suffix:      url[loc[3]:],
		placeholder: true,
	}
}

func (t Template) HasPlaceholder() bool {
	return t.placeholder
}

// Instantiate returns the URL for episode index. Indices wider than the
// template width are never truncated.
func (t Template) Instantiate(index uint32) string {
	if !t.placeholder {
		return t.Raw
	}
	width := t.Width
	if width <= 0 {
		width = defaultWidth
	}
	return t.prefix + fmt.Sprintf("%0*d", width, index) + t.suffix
}

func (t Template) String() string {
	return t.Raw
}
