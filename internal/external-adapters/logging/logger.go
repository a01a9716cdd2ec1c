// Package logging implements the domain logger on top of logrus.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ochairo/sonarscan/internal/domain/entities"
	"github.com/ochairo/sonarscan/internal/domain/interfaces"
)

// Config contains logger settings
type Config struct {
	Level   string // debug, info, warn, error
	Format  string // text or json
	Output  io.Writer
	Secrets []string
}

// Logger adapts a logrus entry to interfaces.Logger
type Logger struct {
	entry  *logrus.Entry
	masker *maskingHook
}

// New creates a logger. Unknown levels fall back to info.
func New(config Config) *Logger {
	base := logrus.New()

	out := config.Output
	if out == nil {
		out = os.Stderr
	}
	base.SetOutput(out)

	level, err := logrus.ParseLevel(strings.TrimSpace(config.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	if strings.EqualFold(config.Format, "json") {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	}

	masker := &maskingHook{}
	masker.add(config.Secrets...)
	base.AddHook(masker)

	return &Logger{entry: logrus.NewEntry(base), masker: masker}
}

// AddSecret registers values that must never appear in log output
func (l *Logger) AddSecret(secrets ...string) {
	l.masker.add(secrets...)
}

// Debug logs at debug level
func (l *Logger) Debug(msg string, fields ...interfaces.Field) {
	l.withFields(fields).Debug(msg)
}

// Info logs at info level
func (l *Logger) Info(msg string, fields ...interfaces.Field) {
	l.withFields(fields).Info(msg)
}

// Warn logs at warn level
func (l *Logger) Warn(msg string, fields ...interfaces.Field) {
	l.withFields(fields).Warn(msg)
}

// Error logs at error level
func (l *Logger) Error(msg string, fields ...interfaces.Field) {
	l.withFields(fields).Error(msg)
}

// With returns a logger that adds fields to every entry
func (l *Logger) With(fields ...interfaces.Field) interfaces.Logger {
	return &Logger{entry: l.withFields(fields), masker: l.masker}
}

func (l *Logger) withFields(fields []interfaces.Field) *logrus.Entry {
	if len(fields) == 0 {
		return l.entry
	}
	data := make(logrus.Fields, len(fields))
	for _, f := range fields {
		data[f.Key] = f.Value
	}
	return l.entry.WithFields(data)
}

// maskingHook replaces registered secrets in messages and field values
// before the entry is formatted
type maskingHook struct {
	mu      sync.RWMutex
	secrets []string
}

func (h *maskingHook) add(secrets ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range secrets {
		if s != "" {
			h.secrets = append(h.secrets, s)
		}
	}
}

// Levels returns every level; masking applies everywhere
func (h *maskingHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire masks the entry in place
func (h *maskingHook) Fire(entry *logrus.Entry) error {
	h.mu.RLock()
	secrets := h.secrets
	h.mu.RUnlock()
	if len(secrets) == 0 {
		return nil
	}

	entry.Message = entities.MaskSecrets(entry.Message, secrets...)
	for key, value := range entry.Data {
		if value == nil {
			continue
		}
		text := fmt.Sprint(value)
		if masked := entities.MaskSecrets(text, secrets...); masked != text {
			entry.Data[key] = masked
		}
	}
	return nil
}
