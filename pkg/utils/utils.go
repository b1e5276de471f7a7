package utils

import (
	"regexp"
	"strings"
)

var (
	illegalChars = regexp.MustCompile(`[\\/:*?"<>|]`)
	multiSpace   = regexp.MustCompile(`\s+`)
)

// CleanFolderName turns a series title into a directory name that is valid on
// every common filesystem.
func CleanFolderName(rawName string) string {
	name := strings.TrimSpace(rawName)
	name = illegalChars.ReplaceAllString(name, "")
	name = multiSpace.ReplaceAllString(name, " ")

	name = strings.Trim(name, ". ")

	return name
}
