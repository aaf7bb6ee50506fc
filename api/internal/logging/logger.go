// Package logging builds the process-wide slog logger.
//
// Every record carries the client IP of the request that produced it, taken
// from the context ("unknown" outside a request), and failures on the
// gateway and cipher paths are emitted at LevelCritical.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelCritical sits above slog.LevelError.
const LevelCritical = slog.Level(12)

const unknownClientIP = "unknown"

type clientIPKey struct{}

// WithClientIP attaches the caller's address to ctx for log attribution.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIP returns the address stored by WithClientIP, or "unknown".
func ClientIP(ctx context.Context) string {
	if ctx == nil {
		return unknownClientIP
	}
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	return unknownClientIP
}

// Critical logs msg at LevelCritical.
func Critical(ctx context.Context, logger *slog.Logger, msg string, args ...any) {
	logger.Log(ctx, LevelCritical, msg, args...)
}

// ParseLevel maps LOG_LEVEL values onto slog levels. Unknown values fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "critical":
		return LevelCritical
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a JSON logger writing to w.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: renameCritical,
	})
	return slog.New(&clientIPHandler{Handler: h})
}

// Options configures New.
type Options struct {
	Dir    string
	Prefix string
	Level  slog.Level
}

// New builds the process logger: stdout plus a dated file under opts.Dir.
// The returned closer releases the file and must be called at shutdown.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	if opts.Prefix == "" {
		opts.Prefix = "api"
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("logging: create log dir: %w", err)
	}

	file := NewDailyFile(opts.Dir, opts.Prefix, time.Now)
	logger := NewLogger(io.MultiWriter(os.Stdout, file), opts.Level)
	return logger, file, nil
}

func renameCritical(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= LevelCritical {
		a.Value = slog.StringValue("CRITICAL")
	}
	return a
}

// clientIPHandler stamps every record with the client IP found in its context.
type clientIPHandler struct {
	slog.Handler
}

func (h *clientIPHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(slog.String("clientip", ClientIP(ctx)))
	return h.Handler.Handle(ctx, r)
}

func (h *clientIPHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &clientIPHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *clientIPHandler) WithGroup(name string) slog.Handler {
	return &clientIPHandler{Handler: h.Handler.WithGroup(name)}
}

// DailyFile is an io.Writer appending to <dir>/<prefix>-YYYYMMDD.log and
// reopening when the calendar date changes.
type DailyFile struct {
	dir    string
	prefix string
	now    func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
}

func NewDailyFile(dir, prefix string, now func() time.Time) *DailyFile {
	return &DailyFile{dir: dir, prefix: prefix, now: now}
}

func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	day := d.now().Format("20060102")
	if d.file == nil || day != d.day {
		if d.file != nil {
			d.file.Close()
			d.file = nil
		}
		f, err := os.OpenFile(d.path(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return 0, err
		}
		d.file, d.day = f, day
	}
	return d.file.Write(p)
}

func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

func (d *DailyFile) path(day string) string {
	return filepath.Join(d.dir, fmt.Sprintf("%s-%s.log", d.prefix, day))
}
