package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bugmaschine/epfetch/internal/anime"
	"github.com/bugmaschine/epfetch/internal/config"
	"github.com/bugmaschine/epfetch/internal/metrics"
)

// seriesServer serves Show_01.mp4 to Show_<n>.mp4 under /media/.
type seriesServer struct {
	*httptest.Server

	mu   sync.Mutex
	gets []string
}

func newSeriesServer(t *testing.T, episodes int) *seriesServer {
	t.Helper()
	files := make(map[string][]byte, episodes)
	for i := 1; i <= episodes; i++ {
		files[fmt.Sprintf("/media/Show_%02d.mp4", i)] = episodeContent(i)
	}

	s := &seriesServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.Method == http.MethodGet {
			s.mu.Lock()
			s.gets = append(s.gets, r.URL.Path)
			s.mu.Unlock()
		}
		http.ServeContent(w, r, r.URL.Path, time.Time{}, bytes.NewReader(content))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *seriesServer) episodeURL(i int) string {
	return fmt.Sprintf("%s/media/Show_%02d.mp4", s.URL, i)
}

func episodeContent(i int) []byte {
	return bytes.Repeat([]byte{byte('a' + i)}, 1000+i)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Concurrency:  2,
		OutputDir:    t.TempDir(),
		UserAgent:    "epfetch-test",
		LimitRate:    "inf",
		ProbeTimeout: 2 * time.Second,
	}
}

func newApp(t *testing.T, cfg *config.Config, m *metrics.Metrics) *App {
	t.Helper()
	a, err := New(cfg, nil, m)
	require.NoError(t, err)
	return a
}

func assertEpisodes(t *testing.T, dir string, episodes ...int) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, len(episodes))

	for _, i := range episodes {
		got, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("Show_%02d.mp4", i)))
		require.NoError(t, err)
		assert.Equal(t, episodeContent(i), got)
	}
}

func TestRunDetect(t *testing.T) {
	srv := newSeriesServer(t, 5)
	cfg := testConfig(t)

	summary, err := newApp(t, cfg, nil).Run(context.Background(), Request{
		URL:    srv.episodeURL(3),
		Detect: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Completed)
	assert.Zero(t, summary.Failed)
	assertEpisodes(t, cfg.OutputDir, 1, 2, 3, 4, 5)
}

func TestRunDetectSkipsWatched(t *testing.T) {
	srv := newSeriesServer(t, 5)
	cfg := testConfig(t)
	watched := uint32(3)

	summary, err := newApp(t, cfg, nil).Run(context.Background(), Request{
		URL:      srv.episodeURL(1),
		Detect:   true,
		Progress: &watched,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Completed)
	assertEpisodes(t, cfg.OutputDir, 4, 5)
}

func TestRunExplicitRange(t *testing.T) {
	srv := newSeriesServer(t, 5)
	cfg := testConfig(t)

	summary, err := newApp(t, cfg, nil).Run(context.Background(), Request{
		URL:      srv.episodeURL(1),
		Episodes: &anime.Range{Start: 2, End: 4},
		Offset:   1,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Completed)
	assertEpisodes(t, cfg.OutputDir, 3, 4)
}

func TestRunSingleURL(t *testing.T) {
	srv := newSeriesServer(t, 5)
	cfg := testConfig(t)

	summary, err := newApp(t, cfg, nil).Run(context.Background(), Request{URL: srv.episodeURL(2)})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Completed)
	assertEpisodes(t, cfg.OutputDir, 2)
	assert.Equal(t, []string{"/media/Show_02.mp4"}, srv.gets)
}

func TestRunSecondRunSkips(t *testing.T) {
	srv := newSeriesServer(t, 3)
	cfg := testConfig(t)
	a := newApp(t, cfg, nil)
	req := Request{URL: srv.episodeURL(1), Episodes: &anime.Range{Start: 1, End: 3}}

	first, err := a.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Completed)

	second, err := a.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, second.Skipped)
	assert.Zero(t, second.Bytes)
	assert.Len(t, srv.gets, 3)
}

func TestRunEmptyPlan(t *testing.T) {
	srv := newSeriesServer(t, 3)
	cfg := testConfig(t)

	summary, err := newApp(t, cfg, nil).Run(context.Background(), Request{
		URL:      srv.episodeURL(1),
		Episodes: &anime.Range{Start: 1, End: 2},
		Offset:   5,
	})
	require.ErrorIs(t, err, ErrNothingPlanned)
	assert.Zero(t, summary.Total())
	assert.Empty(t, srv.gets)
}

func TestRunQueue(t *testing.T) {
	srv := newSeriesServer(t, 3)
	cfg := testConfig(t)

	queue := strings.Join([]string{
		"# library",
		srv.episodeURL(1) + " 1-2 Show",
		srv.URL + "/media/Other_01.mp4 1-1 Other # gone",
	}, "\n")
	queuePath := filepath.Join(t.TempDir(), "queue.txt")
	require.NoError(t, os.WriteFile(queuePath, []byte(queue), 0644))

	summary, err := newApp(t, cfg, nil).Run(context.Background(), Request{QueueFile: queuePath})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 1, summary.Failed)
	assertEpisodes(t, filepath.Join(cfg.OutputDir, "Show"), 1, 2)
}

func TestRunQueueSearch(t *testing.T) {
	srv := newSeriesServer(t, 3)
	cfg := testConfig(t)

	queue := srv.episodeURL(1) + " 1-1 Show\n" + srv.URL + "/media/Other_01.mp4 1-1 Other\n"
	queuePath := filepath.Join(t.TempDir(), "queue.txt")
	require.NoError(t, os.WriteFile(queuePath, []byte(queue), 0644))

	summary, err := newApp(t, cfg, nil).Run(context.Background(), Request{QueueFile: queuePath, Search: "sho"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Completed)
	assert.Zero(t, summary.Failed)
	assertEpisodes(t, filepath.Join(cfg.OutputDir, "Show"), 1)
}

func TestRunPlaylist(t *testing.T) {
	srv := newSeriesServer(t, 3)
	cfg := testConfig(t)

	list := "#EXTM3U\n#EXT-X-TARGETDURATION:10\n" +
		"#EXTINF:10.0,\n" + srv.episodeURL(3) + "\n" +
		"#EXTINF:10.0,\n" + srv.episodeURL(1) + "\n" +
		"#EXT-X-ENDLIST\n"
	listPath := filepath.Join(t.TempDir(), "list.m3u8")
	require.NoError(t, os.WriteFile(listPath, []byte(list), 0644))

	summary, err := newApp(t, cfg, nil).Run(context.Background(), Request{Playlist: listPath})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Completed)
	assertEpisodes(t, cfg.OutputDir, 1, 3)
}

func TestRunMetrics(t *testing.T) {
	srv := newSeriesServer(t, 4)
	cfg := testConfig(t)
	m := metrics.New()

	_, err := newApp(t, cfg, m).Run(context.Background(), Request{URL: srv.episodeURL(1), Detect: true})
	require.NoError(t, err)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("completed")))
	assert.Greater(t, testutil.ToFloat64(m.ExistenceChecks.WithLabelValues("present")), 0.0)
	assert.Greater(t, testutil.ToFloat64(m.ExistenceChecks.WithLabelValues("absent")), 0.0)
	assert.Zero(t, testutil.ToFloat64(m.InFlight))
}

func TestRunCancelled(t *testing.T) {
	srv := newSeriesServer(t, 3)
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newApp(t, cfg, nil).Run(ctx, Request{URL: srv.episodeURL(1), Detect: true})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRequestValidate(t *testing.T) {
	one := uint32(1)
	last := uint32(math.MaxUint32)
	tests := []struct {
		name string
		req  Request
		err  error
	}{
		{name: "url", req: Request{URL: "https://cdn.example.com/Show_01.mp4"}},
		{name: "queue with search", req: Request{QueueFile: "queue.txt", Search: "show"}},
		{name: "playlist", req: Request{Playlist: "list.m3u8"}},
		{name: "nothing", req: Request{}, err: ErrNoSource},
		{name: "url and queue", req: Request{URL: "u", QueueFile: "q"}, err: ErrManySources},
		{name: "search without queue", req: Request{URL: "u", Search: "s"}, err: ErrSearchNoQueue},
		{name: "range and detect", req: Request{URL: "u", Episodes: &anime.Range{Start: 1, End: 2}, Detect: true}, err: ErrRangeAndDetect},
		{name: "progress on queue", req: Request{QueueFile: "q", Progress: &one}, err: ErrProgressNoURL},
		{name: "progress at last index", req: Request{URL: "u", Progress: &last}, err: ErrProgressTooBig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

type searcherFunc func(ctx context.Context, query string) ([]anime.Anime, error)

func (f searcherFunc) Search(ctx context.Context, query string) ([]anime.Anime, error) {
	return f(ctx, query)
}

func TestSearch(t *testing.T) {
	records := []anime.Anime{{Name: "Show"}, {Name: "Other"}}
	var queries []string
	s := searcherFunc(func(_ context.Context, query string) ([]anime.Anime, error) {
		queries = append(queries, query)
		if query == "broken" {
			return nil, errors.New("index unavailable")
		}
		return records[:1], nil
	})

	got, err := search(context.Background(), s, "show")
	require.NoError(t, err)
	assert.Equal(t, records[:1], got)

	_, err = search(context.Background(), s, "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index unavailable")

	assert.Equal(t, []string{"show", "broken"}, queries)
}
