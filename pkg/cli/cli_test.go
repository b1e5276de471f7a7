package cli

import (
	"io"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bugmaschine/epfetch/internal/anime"
	"github.com/bugmaschine/epfetch/internal/app"
	"github.com/bugmaschine/epfetch/internal/config"
)

const episodeURL = "https://cdn.example.com/media/Show_01.mp4"

func execute(t *testing.T, cmdArgs ...string) (*Args, *cobra.Command, error) {
	t.Helper()
	args := &Args{}
	ran := false
	cmd := NewRootCommand(args, func(*cobra.Command, *Args) error {
		ran = true
		return nil
	})
	cmd.SetArgs(cmdArgs)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	if err == nil {
		require.True(t, ran)
	}
	return args, cmd, err
}

func TestRequest(t *testing.T) {
	watched := uint32(4)
	tests := []struct {
		name string
		args []string
		want app.Request
	}{
		{
			name: "range",
			args: []string{episodeURL, "-e", "1-12", "--offset", "2"},
			want: app.Request{URL: episodeURL, Episodes: &anime.Range{Start: 1, End: 12}, Offset: 2},
		},
		{
			name: "single episode",
			args: []string{episodeURL, "-e", "7"},
			want: app.Request{URL: episodeURL, Episodes: &anime.Range{Start: 7, End: 7}},
		},
		{
			name: "all detects",
			args: []string{episodeURL, "-e", "all"},
			want: app.Request{URL: episodeURL, Detect: true},
		},
		{
			name: "detect with progress",
			args: []string{episodeURL, "--detect", "--progress", "4"},
			want: app.Request{URL: episodeURL, Detect: true, Progress: &watched},
		},
		{
			name: "queue",
			args: []string{"-q", "queue.txt", "--search", "frieren"},
			want: app.Request{QueueFile: "queue.txt", Search: "frieren"},
		},
		{
			name: "playlist",
			args: []string{"--playlist", "list.m3u8"},
			want: app.Request{Playlist: "list.m3u8"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, _, err := execute(t, tt.args...)
			require.NoError(t, err)

			req, err := args.Request()
			require.NoError(t, err)
			assert.Equal(t, tt.want, req)
		})
	}
}

func TestRequestErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		err  error
	}{
		{name: "range and detect", args: []string{episodeURL, "-e", "1-3", "--detect"}, err: app.ErrRangeAndDetect},
		{name: "search without queue", args: []string{episodeURL, "--search", "x"}, err: app.ErrSearchNoQueue},
		{name: "url and playlist", args: []string{episodeURL, "--playlist", "list.m3u8"}, err: app.ErrManySources},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, _, err := execute(t, tt.args...)
			require.NoError(t, err)

			_, err = args.Request()
			assert.ErrorIs(t, err, tt.err)
		})
	}

	t.Run("reversed range", func(t *testing.T) {
		args, _, err := execute(t, episodeURL, "-e", "5-1")
		require.NoError(t, err)
		_, err = args.Request()
		assert.Error(t, err)
	})
}

func TestMissingSource(t *testing.T) {
	_, _, err := execute(t)
	assert.Error(t, err)

	_, _, err = execute(t, episodeURL, episodeURL)
	assert.Error(t, err)
}

func TestFlagsReachConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	_, cmd, err := execute(t, episodeURL, "-N", "3", "--referrer", "https://site.example.com/", "-r", "2Mi", "--probe-retries", "2")
	require.NoError(t, err)

	cfg, err := config.New("", cmd.Flags())
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, "https://site.example.com/", cfg.Referrer)
	assert.Equal(t, "2Mi", cfg.LimitRate)
	assert.Equal(t, 2, cfg.ProbeRetries)
	assert.Equal(t, "downloads", cfg.OutputDir)
}
