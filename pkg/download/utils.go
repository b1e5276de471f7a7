package download

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"
)

const seriesNameLimit = 160

var (
	colonSpaced   = regexp.MustCompile(`([\p{L}\d]): +([\p{L}\d])`)
	colonTight    = regexp.MustCompile(`([\p{L}\d]):([\p{L}\d])`)
	questionMark  = regexp.MustCompile(`([\p{L}\d])\?+ +([\p{L}\d])`)
	slashTight    = regexp.MustCompile(`\b([\p{L}\d])/+([\p{L}\d])\b`)
	slashSpaced   = regexp.MustCompile(`([\p{L}\d])/+([\p{L}\d])`)
	multipleSpace = regexp.MustCompile(` {2,}`)
	nameReplacer  = strings.NewReplacer("\"", "", "\\", "", "*", "", "<", "", ">", "", "|", "")
)

// PrepareSeriesNameForFile turns a series title into something usable inside
// labels and file names: "Re:Zero: Starting Life" -> "Re Zero - Starting Life".
func PrepareSeriesNameForFile(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.Join(strings.Fields(name), " ")
	name = nameReplacer.Replace(name)

	name = colonSpaced.ReplaceAllString(name, "${1} - ${2}")
	name = colonTight.ReplaceAllString(name, "${1} ${2}")
	name = strings.ReplaceAll(name, ":", "")

	name = questionMark.ReplaceAllString(name, "${1} - ${2}")
	name = strings.ReplaceAll(name, "?", "")

	name = slashTight.ReplaceAllString(name, "${1}${2}")
	name = slashSpaced.ReplaceAllString(name, "${1} ${2}")
	name = strings.ReplaceAll(name, "/", "")

	name = multipleSpace.ReplaceAllString(name, " ")
	name = strings.Trim(name, " .")

	if len(name) <= seriesNameLimit {
		return name
	}
	// cut at a rune boundary
	cut := 0
	for i := range name {
		if i > seriesNameLimit {
			break
		}
		cut = i
	}
	return name[:cut]
}

// EpisodeLabel builds the display label of an episode, e.g. "Frieren - E05".
// The episode number is padded to the width of maxEpisode, at least two digits.
func EpisodeLabel(seriesName string, episode, maxEpisode uint32) string {
	var sb strings.Builder

	if seriesName != "" {
		sb.WriteString(seriesName)
		sb.WriteString(" - ")
	}

	alignment := 2
	if maxEpisode > 0 {
		alignment = max(int(math.Log10(float64(maxEpisode)))+1, 2)
	}

	sb.WriteString(fmt.Sprintf("E%0*d", alignment, episode))
	return sb.String()
}
