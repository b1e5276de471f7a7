package download

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
)

// fallbackFilename is used for URLs without a final path segment.
const fallbackFilename = "download"

var (
	ErrInvalidURL      = errors.New("invalid url")
	ErrAlreadyComplete = errors.New("file already complete")
)

// Job is a single episode transfer. Jobs are consumed once and never shared.
type Job struct {
	URL       string
	Root      string
	Overwrite bool
	Label     string
}

// Filename derives the destination name from the last path segment of the URL.
func (j Job) Filename() (string, error) {
	u, err := url.Parse(j.URL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return fallbackFilename, nil
	}
	return name, nil
}

// Destination is the full path the job writes to.
func (j Job) Destination() (string, error) {
	name, err := j.Filename()
	if err != nil {
		return "", err
	}
	return filepath.Join(j.Root, name), nil
}

type Status int

const (
	Completed Status = iota
	Skipped
	Failed
)

func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Outcome is the terminal state of one job.
type Outcome struct {
	Status Status
	Reason string
	Err    error
	// Bytes is the number of bytes written by this attempt.
	Bytes int64
	Path  string
}

// DownloadError wraps a per-job failure with the file it was writing.
type DownloadError struct {
	Filename string
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed to download %s: %v", e.Filename, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
