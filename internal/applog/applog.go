// Package applog wires zerolog to the console and to a per-day log file
// whose lines read "timestamp | LEVEL | message".
package applog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	TimeFormat = "2006-01-02 15:04:05"
	filePrefix = "scheme_tool_"
)

// NewDailyFile returns an append-only writer that switches to
// scheme_tool_YYYY-MM-DD.log in dir when the clock's calendar day changes.
func NewDailyFile(dir string, clock rotatelogs.Clock) (*rotatelogs.RotateLogs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return rotatelogs.New(
		filepath.Join(dir, filePrefix+"%Y-%m-%d.log"),
		rotatelogs.WithClock(clock),
		rotatelogs.WithRotationTime(24*time.Hour),
		rotatelogs.WithMaxAge(-1),
	)
}

// FileWriter formats events as "timestamp | LEVEL | message key=value...".
func FileWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    true,
		TimeFormat: TimeFormat,
		PartsOrder: []string{
			zerolog.TimestampFieldName,
			zerolog.LevelFieldName,
			zerolog.MessageFieldName,
		},
		FormatTimestamp: func(i interface{}) string {
			return fmt.Sprintf("%v |", i)
		},
		FormatLevel: func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("%v", i)) + " |"
		},
	}
}

// Setup installs the global logger writing to the daily file in logsDir and,
// when console is non-nil, to console as well. The returned closer releases
// the file handle.
func Setup(logsDir string, level zerolog.Level, console io.Writer) (io.Closer, error) {
	daily, err := NewDailyFile(logsDir, rotatelogs.Local)
	if err != nil {
		return nil, err
	}

	zerolog.TimeFieldFormat = TimeFormat
	zerolog.SetGlobalLevel(level)
	writers := []io.Writer{FileWriter(daily)}
	if console != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339})
	}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().Timestamp().Logger()
	return daily, nil
}
