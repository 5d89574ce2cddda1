package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type Logger interface {
	Printf(format string, args ...any)
	Print(args ...any)
	Println(args ...any)
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type noOpLogger struct{}

func (n *noOpLogger) Printf(_ string, _ ...any) {}
func (n *noOpLogger) Print(_ ...any)            {}
func (n *noOpLogger) Println(_ ...any)          {}
func (n *noOpLogger) Debugf(_ string, _ ...any) {}
func (n *noOpLogger) Warnf(_ string, _ ...any)  {}
func (n *noOpLogger) Errorf(_ string, _ ...any) {}

var (
	defaultNoOpLogger        = &noOpLogger{}
	logger            Logger = defaultNoOpLogger
	mx                sync.RWMutex
)

// zerologLogger maps the Logger methods onto zerolog levels. Printf and
// friends log at info.
type zerologLogger struct {
	l zerolog.Logger
}

// NewZerologLogger wraps an already configured zerolog logger
func NewZerologLogger(l zerolog.Logger) Logger {
	return &zerologLogger{l: l}
}

// NewStdLogger returns a human readable logger writing to stderr
func NewStdLogger() Logger {
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"}
	return NewZerologLogger(zerolog.New(w).With().Timestamp().Str("component", "cbt").Logger())
}

func (z *zerologLogger) Printf(format string, args ...any) {
	z.l.Info().Msgf(format, args...)
}

func (z *zerologLogger) Print(args ...any) {
	z.l.Info().Msg(fmt.Sprint(args...))
}

func (z *zerologLogger) Println(args ...any) {
	z.l.Info().Msg(strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

func (z *zerologLogger) Debugf(format string, args ...any) {
	z.l.Debug().Msgf(format, args...)
}

func (z *zerologLogger) Warnf(format string, args ...any) {
	z.l.Warn().Msgf(format, args...)
}

func (z *zerologLogger) Errorf(format string, args ...any) {
	z.l.Error().Msgf(format, args...)
}

// Replaces default logger with provided logger
// in case of nil logger, it resets to default no-op logger
func SetLogger(l Logger) {
	mx.Lock()
	defer mx.Unlock()
	if l == nil {
		logger = defaultNoOpLogger
		return
	}
	logger = l
}

// Returns currently configured logger
func GetLogger() Logger {
	mx.RLock()
	defer mx.RUnlock()
	return logger
}

// Print uses whichever logger is currently set
func Print(args ...any) {
	GetLogger().Print(args...)
}

// Printf uses whichever logger is currently set
func Printf(format string, args ...any) {
	GetLogger().Printf(format, args...)
}

func Debugf(format string, args ...any) {
	GetLogger().Debugf(format, args...)
}

func Warnf(format string, args ...any) {
	GetLogger().Warnf(format, args...)
}

// Errorf uses whichever logger is currently set
func Errorf(format string, args ...any) {
	GetLogger().Errorf(format, args...)
}
