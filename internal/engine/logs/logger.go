// Package logs sets up the node's slog logger from the log section of the
// configuration. Output goes to stdout, stderr or a rotated file.
package logs

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/akyaiy/GoSally-stream/internal/engine/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

var GlobalLevel slog.Level

type levelsStruct struct {
	Available []string
	Fallback  string
}

var Levels = levelsStruct{
	Available: []string{
		"debug", "info", "warn", "error",
	},
	Fallback: "info",
}

// Output placeholders accepted in log.output.
const (
	OutStdout = "%1%"
	OutStderr = "%2%"
	OutTmp    = "%tmp%"
)

const logFileName = "event.log"

// SlogWriter adapts a slog.Logger to io.Writer, one record per write.
type SlogWriter struct {
	Logger *slog.Logger
	Level  slog.Level
}

func (w *SlogWriter) Write(p []byte) (n int, err error) {
	msg := string(bytes.TrimSpace(p))
	w.Logger.Log(context.TODO(), w.Level, msg)
	return len(p), nil
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Writer resolves log.output to a destination. Any value other than the
// stdout/stderr placeholders names a directory holding event.log.
func Writer(out string) io.Writer {
	switch out {
	case OutStdout, "":
		return os.Stdout
	case OutStderr:
		return os.Stderr
	}
	path := strings.ReplaceAll(out, OutTmp, filepath.Clean(os.TempDir()))
	return &lumberjack.Logger{
		Filename:   filepath.Join(path, logFileName),
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	}
}

// SetupLogger initializes and returns a logger based on the provided log config.
func SetupLogger(o *config.Log) (*slog.Logger, error) {
	var level, out string
	var asJSON bool
	if o.Level != nil {
		level = *o.Level
	}
	if o.OutPath != nil {
		out = *o.OutPath
	}
	if o.JSON != nil {
		asJSON = *o.JSON
	}
	return New(Writer(out), level, asJSON), nil
}

func New(w io.Writer, level string, asJSON bool) *slog.Logger {
	GlobalLevel = ParseLevel(level)
	handlerOpts := &slog.HandlerOptions{Level: GlobalLevel}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}
