package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/bugmaschine/epfetch/pkg/httpx"
	"github.com/bugmaschine/epfetch/pkg/progress"
)

type Downloader struct {
	client  *http.Client
	headers httpx.Headers
	limiter *rate.Limiter
}

// NewDownloader creates a downloader. limitRate is in bytes per second, 0
// disables the limit.
func NewDownloader(headers httpx.Headers, limitRate float64) *Downloader {
	var rLimit *rate.Limiter
	if limitRate > 0 {
		rLimit = rate.NewLimiter(rate.Limit(limitRate), max(int(limitRate), 1))
	}

	return &Downloader{
		client:  httpx.NewClient(),
		headers: headers,
		limiter: rLimit,
	}
}

// Fetch downloads a single job, resuming from the size of an existing local
// file. Bytes written before a failure stay on disk for the next attempt.
func (d *Downloader) Fetch(ctx context.Context, job Job, sink progress.Sink) (Outcome, error) {
	filename, err := job.Filename()
	if err != nil {
		return failed("", &DownloadError{Filename: job.URL, Err: err})
	}
	outputPath, _ := job.Destination()
	slog.Debug("Starting download to file", "url", job.URL, "path", outputPath)

	remoteSize, err := d.remoteSize(ctx, job.URL)
	if err != nil {
		return failed(outputPath, &DownloadError{Filename: filename, Err: err})
	}

	if err := os.MkdirAll(job.Root, 0755); err != nil {
		return failed(outputPath, &DownloadError{Filename: filename, Err: err})
	}

	var offset int64
	if !job.Overwrite {
		info, err := os.Stat(outputPath)
		switch {
		case err == nil:
			offset = info.Size()
		case !os.IsNotExist(err):
			return failed(outputPath, &DownloadError{Filename: filename, Err: err})
		}
	}

	if remoteSize > 0 && offset >= remoteSize {
		slog.Info("skipping download: file already complete", "file", filename, "size", offset)
		return Outcome{Status: Skipped, Reason: ErrAlreadyComplete.Error(), Path: outputPath}, nil
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	targetFile, err := os.OpenFile(outputPath, flags, 0644)
	if err != nil {
		return failed(outputPath, &DownloadError{Filename: filename, Err: err})
	}
	defer targetFile.Close()

	message := job.Label
	if message == "" {
		message = filename
	}

	bar := sink.Register()
	status := "failed"
	// Finish runs even when the transfer panics, an open bar blocks the sink.
	defer func() {
		bar.Finish(message + ": " + status)
	}()
	bar.SetMessage(message)
	bar.SetLength(uint64(remoteSize))
	bar.SetPosition(uint64(offset))

	written, err := d.transfer(ctx, job.URL, targetFile, offset, remoteSize, bar)
	if err == ErrAlreadyComplete {
		status = "already complete"
		slog.Info("skipping download: file already complete", "file", filename, "size", offset)
		return Outcome{Status: Skipped, Reason: err.Error(), Path: outputPath}, nil
	}
	if err != nil {
		return failed(outputPath, &DownloadError{Filename: filename, Err: err})
	}

	status = "finished"
	slog.Debug("Download finished successfully", "file", filename, "bytes", written)
	return Outcome{Status: Completed, Bytes: written, Path: outputPath}, nil
}

// remoteSize returns the declared Content-Length, or 0 when unknown.
func (d *Downloader) remoteSize(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	d.headers.Apply(req)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	slog.Debug("Got metadata", "status", resp.Status, "content-length", resp.Header.Get("Content-Length"))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("bad status: %s", resp.Status)
	}

	size, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	if err != nil || size < 0 {
		return 0, nil
	}
	return size, nil
}

// transfer streams the body from offset. A 416 answer only means the file is
// complete when the remote size is unknown.
func (d *Downloader) transfer(ctx context.Context, url string, targetFile *os.File, offset, remoteSize int64, bar progress.Handle) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	d.headers.Apply(req)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && offset > 0 && remoteSize == 0:
		return 0, ErrAlreadyComplete
	case resp.StatusCode == http.StatusOK && offset > 0:
		// Range was ignored, the body starts at byte zero.
		slog.Debug("Server ignored range request, restarting", "url", url, "offset", offset)
		if err := targetFile.Truncate(0); err != nil {
			return 0, err
		}
		offset = 0
		bar.SetPosition(0)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return 0, fmt.Errorf("bad status: %s", resp.Status)
	}

	if resp.ContentLength > 0 {
		bar.SetLength(uint64(offset + resp.ContentLength))
	}

	stream := newChunkStream(ctx, resp.Body, d.limiter)
	var written int64
	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
		n, err := targetFile.Write(chunk)
		written += int64(n)
		bar.Increment(uint64(n))
		if err != nil {
			return written, err
		}
	}
}

func failed(path string, err error) (Outcome, error) {
	return Outcome{Status: Failed, Err: err, Path: path}, err
}
