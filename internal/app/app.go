// Package app wires discovery, planning and transfers into one run.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bugmaschine/epfetch/internal/anime"
	"github.com/bugmaschine/epfetch/internal/config"
	"github.com/bugmaschine/epfetch/internal/metrics"
	"github.com/bugmaschine/epfetch/pkg/dirs"
	"github.com/bugmaschine/epfetch/pkg/download"
	"github.com/bugmaschine/epfetch/pkg/plan"
	"github.com/bugmaschine/epfetch/pkg/playlist"
	"github.com/bugmaschine/epfetch/pkg/probe"
	"github.com/bugmaschine/epfetch/pkg/progress"
	"github.com/bugmaschine/epfetch/pkg/urltemplate"
	"github.com/bugmaschine/epfetch/pkg/utils"
)

// ErrNothingPlanned is returned when no series of the run produced a job.
var ErrNothingPlanned = errors.New("nothing could be planned")

type App struct {
	cfg     *config.Config
	saveDir string

	prober     *probe.Prober
	downloader *download.Downloader
	playlists  *playlist.Loader
	scheduler  *download.Scheduler
	sink       progress.Sink
	metrics    *metrics.Metrics
}

// New builds an App from a validated config. m may be nil.
func New(cfg *config.Config, sink progress.Sink, m *metrics.Metrics) (*App, error) {
	limit, err := cfg.RateLimit()
	if err != nil {
		return nil, err
	}
	saveDir, err := cfg.SaveDirectory()
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = progress.Discard
	}

	headers := cfg.RequestHeaders()

	httpChecker := probe.NewHTTPChecker(headers, cfg.ProbeTimeout)
	httpChecker.Retries = cfg.ProbeRetries
	var checker probe.Checker = httpChecker
	if m != nil {
		checker = m.InstrumentChecker(checker)
	}

	a := &App{
		cfg:        cfg,
		saveDir:    saveDir,
		prober:     probe.New(checker),
		downloader: download.NewDownloader(headers, limit),
		playlists:  playlist.NewLoader(nil, headers),
		scheduler:  download.NewScheduler(cfg.Concurrency),
		sink:       sink,
		metrics:    m,
	}
	if m != nil {
		a.scheduler.OnOutcome = func(_ download.Task, o download.Outcome) {
			m.ObserveOutcome(o)
		}
	}
	return a, nil
}

// Run downloads everything req asks for. Failed series are logged and
// skipped, an error is only returned when nothing could be planned at all.
func (a *App) Run(ctx context.Context, req Request) (download.Summary, error) {
	var total download.Summary

	if err := req.Validate(); err != nil {
		return total, err
	}

	if req.Playlist != "" {
		return a.runPlaylist(ctx, req)
	}

	records, perSeriesFolder, err := a.records(ctx, req)
	if err != nil {
		return total, err
	}

	planned := 0
	for _, rec := range records {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}

		root := a.saveDir
		if perSeriesFolder {
			root = dirs.SeriesDirectory(a.saveDir, utils.CleanFolderName(rec.Name))
		}

		jobs, err := a.planSeries(ctx, rec, req, root)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return total, err
			}
			if errors.Is(err, plan.ErrEmptyPlan) {
				slog.Warn("No episodes to download", "series", rec.Name, "url", rec.OriginURL)
			} else {
				slog.Error("Failed to plan series", "series", rec.Name, "url", rec.OriginURL, "error", err)
			}
			continue
		}
		planned++

		slog.Info("Downloading series", "series", rec.Name, "episodes", len(jobs), "directory", root)
		summary := a.runJobs(ctx, jobs)
		logSummary(rec.Name, summary)
		total = merge(total, summary)
	}

	if planned == 0 {
		return total, ErrNothingPlanned
	}
	return total, nil
}

// records resolves the request into series records. The bool reports
// whether each series gets its own folder.
func (a *App) records(ctx context.Context, req Request) ([]anime.Anime, bool, error) {
	if req.URL != "" {
		rec := anime.Anime{
			Name:            anime.NameFromURL(req.URL),
			OriginURL:       req.URL,
			EpisodeRange:    req.Episodes,
			AnilistProgress: req.Progress,
		}
		return []anime.Anime{rec}, false, nil
	}

	f, err := os.Open(req.QueueFile)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open queue file: %w", err)
	}
	defer f.Close()

	queue, err := anime.ParseQueue(f)
	if err != nil {
		return nil, false, err
	}

	records, err := search(ctx, queue, req.Search)
	if err != nil {
		return nil, false, err
	}

	if req.Episodes != nil {
		for i := range records {
			records[i].EpisodeRange = req.Episodes
		}
	}
	return records, true, nil
}

// search returns the records s finds for query. An empty query keeps every
// record.
func search(ctx context.Context, s anime.Searcher, query string) ([]anime.Anime, error) {
	records, err := s.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search %q: %w", query, err)
	}
	if query != "" {
		slog.Info("Matched entries", "query", query, "matches", len(records))
	}
	return records, nil
}

func (a *App) planSeries(ctx context.Context, rec anime.Anime, req Request, root string) ([]download.Job, error) {
	tmpl := urltemplate.Extract(rec.OriginURL)
	opts := plan.Options{
		Root:       root,
		Overwrite:  a.cfg.Overwrite,
		SeriesName: rec.Name,
	}

	var entries []plan.Entry
	switch {
	case rec.EpisodeRange != nil && tmpl.HasPlaceholder():
		entries = plan.Range(tmpl, *rec.EpisodeRange, req.Offset)
		opts.MaxEpisode = rec.EpisodeRange.End

	case req.Detect && tmpl.HasPlaceholder():
		floor := rec.NominalStart()
		slog.Info("Detecting episodes", "series", rec.Name, "from", floor)
		r, err := a.prober.Probe(ctx, tmpl, floor)
		if err != nil {
			return nil, err
		}
		slog.Info("Detected episodes", "series", rec.Name, "range", r.String())
		entries = plan.Range(tmpl, r, req.Offset)
		opts.MaxEpisode = r.End

	default:
		if !tmpl.HasPlaceholder() && (req.Detect || rec.EpisodeRange != nil) {
			slog.Warn("URL has no episode number, downloading it as is", "url", rec.OriginURL)
		}
		entries = plan.URLs([]string{rec.OriginURL}, req.Offset)
	}

	return plan.Jobs(entries, opts)
}

func (a *App) runPlaylist(ctx context.Context, req Request) (download.Summary, error) {
	urls, err := a.playlists.Load(ctx, req.Playlist)
	if err != nil {
		return download.Summary{}, err
	}

	jobs, err := plan.Jobs(plan.URLs(urls, req.Offset), plan.Options{
		Root:      a.saveDir,
		Overwrite: a.cfg.Overwrite,
	})
	if err != nil {
		if errors.Is(err, plan.ErrEmptyPlan) {
			slog.Warn("No episodes to download", "playlist", req.Playlist)
			return download.Summary{}, ErrNothingPlanned
		}
		return download.Summary{}, err
	}

	slog.Info("Downloading playlist", "playlist", req.Playlist, "entries", len(jobs))
	summary := a.runJobs(ctx, jobs)
	logSummary(req.Playlist, summary)
	return summary, nil
}

func (a *App) runJobs(ctx context.Context, jobs []download.Job) download.Summary {
	tasks := a.downloader.Tasks(jobs, a.sink)
	if a.metrics != nil {
		for i := range tasks {
			tasks[i] = a.metrics.InstrumentTask(tasks[i])
		}
	}
	return a.scheduler.RunAll(ctx, tasks)
}

func logSummary(name string, s download.Summary) {
	attrs := []any{
		"series", name,
		"completed", s.Completed,
		"skipped", s.Skipped,
		"failed", s.Failed,
		"bytes", s.Bytes,
	}
	if s.Failed > 0 {
		slog.Warn("Finished with failures", attrs...)
		return
	}
	slog.Info("Finished", attrs...)
}

func merge(a, b download.Summary) download.Summary {
	return download.Summary{
		Completed: a.Completed + b.Completed,
		Skipped:   a.Skipped + b.Skipped,
		Failed:    a.Failed + b.Failed,
		Bytes:     a.Bytes + b.Bytes,
	}
}
