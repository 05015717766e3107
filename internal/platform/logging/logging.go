package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultMaxSizeMB  = 50
	DefaultMaxBackups = 5
	DefaultMaxAgeDays = 30

	timeFormat = "2006-01-02 15:04:05"
)

type Options struct {
	Level string
	// Console selects the human readable writer instead of JSON lines.
	Console bool
	// File, when set, receives a copy of every entry and is rotated by size.
	File string
	// Out defaults to os.Stderr so that stdout stays free for command output.
	Out io.Writer

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds a logger from opts. The returned closer releases the log file.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	var primary io.Writer = out
	if opts.Console {
		primary = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
	}

	if opts.File == "" {
		return zerolog.New(primary).Level(level).With().Timestamp().Logger(), nopCloser{}, nil
	}

	if err := ensureLogDir(opts.File); err != nil {
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("prepare log directory: %w", err)
	}
	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    orDefault(opts.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: orDefault(opts.MaxBackups, DefaultMaxBackups),
		MaxAge:     orDefault(opts.MaxAgeDays, DefaultMaxAgeDays),
	}

	multi := zerolog.MultiLevelWriter(primary, file)
	return zerolog.New(multi).Level(level).With().Timestamp().Logger(), file, nil
}

func parseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
