package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/fatih/color"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelTrace is a custom log level for trace logs.
const LevelTrace = slog.LevelDebug - 4

// Level names and colors
var levelNames = map[slog.Level]string{
	LevelTrace:      "TRACE",
	slog.LevelDebug: "DEBUG",
	slog.LevelInfo:  "INFO ",
	slog.LevelWarn:  "WARN ",
	slog.LevelError: "ERROR",
}

var levelColors = map[slog.Level]*color.Color{
	LevelTrace:      color.New(color.FgMagenta),
	slog.LevelDebug: color.New(color.FgBlue),
	slog.LevelInfo:  color.New(color.FgGreen),
	slog.LevelWarn:  color.New(color.FgYellow),
	slog.LevelError: color.New(color.FgRed),
}

// CustomHandler is a custom slog handler for pretty printing. Every record is
// written with a single Write so concurrent jobs never interleave lines.
type CustomHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	opts  slog.HandlerOptions
	attrs []slog.Attr
}

func NewCustomHandler(w io.Writer, opts slog.HandlerOptions) *CustomHandler {
	return &CustomHandler{mu: &sync.Mutex{}, w: w, opts: opts}
}

func (h *CustomHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *CustomHandler) Handle(_ context.Context, r slog.Record) error {
	levelName := levelNames[r.Level]
	if levelName == "" {
		levelName = r.Level.String()
	}
	if c := levelColors[r.Level]; c != nil {
		levelName = c.Sprint(levelName)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s > %s", r.Time.Format("15:04:05.000"), levelName, r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&buf, " %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&buf, " %s=%v", a.Key, a.Value)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *CustomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup is not supported, grouped attributes are printed flat.
func (h *CustomHandler) WithGroup(string) slog.Handler {
	return h
}

// Options configure the global logger.
type Options struct {
	Debug bool
	// FilePath additionally writes logs to a rotated file when set.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
}

// InitDefaultLogger installs the pretty handler as the slog default.
func InitDefaultLogger(opts Options) {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(NewCustomHandler(writer(opts), slog.HandlerOptions{
		Level: level,
	})))
}

func writer(opts Options) io.Writer {
	if opts.FilePath == "" {
		return os.Stderr
	}
	rotated := &lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
	}
	return io.MultiWriter(os.Stderr, rotated)
}
