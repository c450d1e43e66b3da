package logger

import (
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Format selects how log lines are rendered.
type Format int32

const (
	FormatText Format = iota
	FormatJSON
)

var (
	currentLevel  atomic.Int32
	currentFormat atomic.Int32

	mu     sync.Mutex
	logger = stdlog.New(os.Stdout, "", 0)
	closer io.Closer
)

func init() {
	currentLevel.Store(int32(LevelInfo))
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(level string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	}
	return LevelInfo, false
}

// SetLevel sets the minimum level. Unknown names are ignored.
func SetLevel(level string) {
	if l, ok := ParseLevel(level); ok {
		currentLevel.Store(int32(l))
	}
}

// GetLevel returns the minimum level.
func GetLevel() Level {
	return Level(currentLevel.Load())
}

// SetFormat selects "text" or "json" output. Unknown names are ignored.
func SetFormat(format string) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		currentFormat.Store(int32(FormatText))
	case "json":
		currentFormat.Store(int32(FormatJSON))
	}
}

// SetOutput redirects log lines to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// Init configures the logger from its configuration values.
//
// output is "stdout", "stderr" or a file path, which is opened for append.
// A previously opened log file is closed.
func Init(level, format, output string) error {
	if _, ok := ParseLevel(level); !ok && level != "" {
		return fmt.Errorf("unknown log level %q", level)
	}
	SetLevel(level)
	SetFormat(format)

	var w io.Writer
	var c io.Closer
	switch output {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		w, c = f, f
	}

	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		_ = closer.Close()
	}
	logger.SetOutput(w)
	closer = c
	return nil
}

type jsonLine struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"msg"`
}

func log(level Level, format string, v ...any) {
	if level < GetLevel() {
		return
	}

	now := time.Now()
	message := fmt.Sprintf(format, v...)

	var line string
	if Format(currentFormat.Load()) == FormatJSON {
		data, err := json.Marshal(jsonLine{
			Time:    now.Format(time.RFC3339Nano),
			Level:   level.String(),
			Message: message,
		})
		if err != nil {
			return
		}
		line = string(data)
	} else {
		timestamp := now.Format("2006-01-02 15:04:05")
		line = fmt.Sprintf("[%s] [%s] %s", timestamp, level.String(), message)
	}

	mu.Lock()
	defer mu.Unlock()
	logger.Println(line)
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}
