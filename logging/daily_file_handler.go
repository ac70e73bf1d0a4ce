package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// dailyFile is an io.Writer that switches to a new <prefix>-YYYY-MM-DD.log
// file when the date changes. It is shared by every handler derived from
// the same DailyFileHandler.
type dailyFile struct {
	mu     sync.Mutex
	dir    string
	prefix string
	now    func() time.Time

	file *os.File
	name string
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.rotateLocked(); err != nil {
		return 0, err
	}
	return d.file.Write(p)
}

func (d *dailyFile) rotateLocked() error {
	name := fmt.Sprintf("%s-%s.log", d.prefix, d.now().Format("2006-01-02"))
	if name == d.name && d.file != nil {
		return nil
	}

	f, err := os.OpenFile(filepath.Join(d.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	if d.file != nil {
		d.file.Close()
	}
	d.file = f
	d.name = name
	return nil
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	d.name = ""
	return err
}

// DailyFileHandler writes every record to a daily log file and mirrors it
// to stdout.
type DailyFileHandler struct {
	file           *dailyFile
	fileHandler    slog.Handler
	defaultHandler slog.Handler
}

func NewDailyFileHandler(logDir, prefix string, opts *slog.HandlerOptions) (*DailyFileHandler, error) {
	return newDailyFileHandler(logDir, prefix, os.Stdout, time.Now, opts)
}

func newDailyFileHandler(logDir, prefix string, stdout io.Writer, now func() time.Time, opts *slog.HandlerOptions) (*DailyFileHandler, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file := &dailyFile{dir: logDir, prefix: prefix, now: now}
	file.mu.Lock()
	err := file.rotateLocked()
	file.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return &DailyFileHandler{
		file:           file,
		fileHandler:    slog.NewTextHandler(file, opts),
		defaultHandler: slog.NewTextHandler(stdout, opts),
	}, nil
}

func (h *DailyFileHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	if h.fileHandler.Enabled(ctx, r.Level) {
		errs = append(errs, h.fileHandler.Handle(ctx, r.Clone()))
	}
	if h.defaultHandler.Enabled(ctx, r.Level) {
		errs = append(errs, h.defaultHandler.Handle(ctx, r))
	}
	return errors.Join(errs...)
}

func (h *DailyFileHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &DailyFileHandler{
		file:           h.file,
		fileHandler:    h.fileHandler.WithAttrs(attrs),
		defaultHandler: h.defaultHandler.WithAttrs(attrs),
	}
}

func (h *DailyFileHandler) WithGroup(name string) slog.Handler {
	return &DailyFileHandler{
		file:           h.file,
		fileHandler:    h.fileHandler.WithGroup(name),
		defaultHandler: h.defaultHandler.WithGroup(name),
	}
}

func (h *DailyFileHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.fileHandler.Enabled(ctx, level) || h.defaultHandler.Enabled(ctx, level)
}

// CurrentFile is the path of the file being written.
func (h *DailyFileHandler) CurrentFile() string {
	h.file.mu.Lock()
	defer h.file.mu.Unlock()
	return filepath.Join(h.file.dir, h.file.name)
}

func (h *DailyFileHandler) Close() error {
	return h.file.Close()
}

// ParseLevel maps debug, info, warn and error onto slog levels, defaulting
// to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
