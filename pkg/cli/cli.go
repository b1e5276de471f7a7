package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bugmaschine/epfetch/internal/anime"
	"github.com/bugmaschine/epfetch/internal/app"
)

type Args struct {
	Url        string
	Episodes   string
	Detect     bool
	Offset     uint32
	Progress   uint32
	QueueFile  string
	Search     string
	Playlist   string
	ConfigFile string

	// Read through config.New, which also honours the config file and
	// environment.
	ConcurrentDownloads int
	LimitRate           string
	Referrer            string
	UserAgent           string
	OutputFolder        string
	Overwrite           bool
	ProbeTimeout        time.Duration
	ProbeRetries        int
	Debug               bool
	LogFile             string
	MetricsAddr         string

	progressSet bool
}

// Request turns the parsed arguments into an app request.
func (a *Args) Request() (app.Request, error) {
	req := app.Request{
		URL:       a.Url,
		QueueFile: a.QueueFile,
		Playlist:  a.Playlist,
		Search:    a.Search,
		Detect:    a.Detect,
		Offset:    a.Offset,
	}

	switch strings.ToLower(strings.TrimSpace(a.Episodes)) {
	case "":
	case "all":
		req.Detect = true
	default:
		r, err := anime.ParseRange(a.Episodes)
		if err != nil {
			return app.Request{}, err
		}
		req.Episodes = &r
	}

	if a.progressSet {
		progress := a.Progress
		req.Progress = &progress
	}

	if err := req.Validate(); err != nil {
		return app.Request{}, err
	}
	return req, nil
}

func NewRootCommand(args *Args, run func(cmd *cobra.Command, args *Args) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "epfetch [URL]",
		Short: "Download every episode of a series from a single episode URL",
		Long: "Takes the URL of one episode, finds the episode number in it and downloads the\n" +
			"requested episodes. With --detect the available episodes are discovered first.\n" +
			"Interrupted downloads resume from the size of the existing file.",
		SilenceUsage: true,
		Args: func(cmd *cobra.Command, cmdArgs []string) error {
			if len(cmdArgs) > 1 {
				return fmt.Errorf("expected at most one URL, got %d", len(cmdArgs))
			}
			if len(cmdArgs) == 1 {
				return nil
			}

			queueFile, _ := cmd.Flags().GetString("queue-file")
			playlist, _ := cmd.Flags().GetString("playlist")
			if queueFile != "" || playlist != "" {
				return nil
			}

			return fmt.Errorf("you must provide either a URL, --queue-file or --playlist")
		},
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			if len(cmdArgs) == 1 {
				args.Url = cmdArgs[0]
			}
			args.progressSet = cmd.Flags().Changed("progress")
			return run(cmd, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&args.Episodes, "episodes", "e", "", "Only download specific episodes (e.g. 5 or 1-12, all detects them)")
	f.BoolVar(&args.Detect, "detect", false, "Discover the available episodes before downloading")
	f.Uint32Var(&args.Offset, "offset", 0, "Skip the first N planned episodes")
	f.Uint32Var(&args.Progress, "progress", 0, "Last watched episode, detection starts after it")
	f.StringVarP(&args.QueueFile, "queue-file", "q", "", "Path to the file containing URLs to download")
	f.StringVar(&args.Search, "search", "", "Only download queue entries whose name matches")
	f.StringVar(&args.Playlist, "playlist", "", "Download the entries of an M3U8 playlist (path or URL)")
	f.StringVar(&args.ConfigFile, "config", "", "Path to a TOML config file")

	f.IntVarP(&args.ConcurrentDownloads, "concurrent", "N", 5, "Concurrent downloads")
	f.StringVarP(&args.LimitRate, "rate", "r", "inf", "Maximum download rate (e.g. 500k, 2Mi)")
	f.StringVar(&args.Referrer, "referrer", "", "Referer header sent with every request")
	f.StringVar(&args.UserAgent, "user-agent", "", "User-Agent header sent with every request")
	f.StringVarP(&args.OutputFolder, "output-folder", "o", "downloads", "In queue mode, each series will get an own folder inside it. In default mode it gets used as save directory directly.")
	f.BoolVar(&args.Overwrite, "overwrite", false, "Download again instead of resuming existing files")
	f.DurationVar(&args.ProbeTimeout, "probe-timeout", 10*time.Second, "Timeout of a single episode existence check")
	f.IntVar(&args.ProbeRetries, "probe-retries", 0, "Retries of an episode existence check after a network error or server error")
	f.BoolVarP(&args.Debug, "debug", "d", false, "Enable debug mode")
	f.StringVarP(&args.LogFile, "log", "l", "", "Path to log file. If not set, logs will only be printed to console. WARNING: This will append to the log file.")
	f.StringVar(&args.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	return cmd
}
