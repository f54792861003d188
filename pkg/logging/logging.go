// Package logging builds the slog logger shared by the CLI commands.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

// Options selects the logger's sinks.
type Options struct {
	// Writer receives human-readable text logs. Nil disables them.
	Writer io.Writer
	// JSONPath, when set, appends JSON lines to that file.
	JSONPath string
	// Journal also sends records to the systemd journal when available.
	Journal bool
	Debug   bool
}

// New returns a logger fanning out to every configured sink, and a close
// function for any files it opened.
func New(opts Options) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	if opts.Debug {
		level.Set(slog.LevelDebug)
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	closeFn := func() error { return nil }

	if opts.Writer != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.Writer, handlerOpts))
	}

	if opts.JSONPath != "" {
		f, err := os.OpenFile(opts.JSONPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, handlerOpts))
		closeFn = f.Close
	}

	if opts.Journal {
		journal, err := slogjournal.NewHandler(&slogjournal.Options{
			ReplaceGroup: func(key string) string {
				return toJournalKey(key)
			},
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				a.Key = toJournalKey(a.Key)
				return a
			},
		})
		if err != nil {
			// Not fatal: the journal is absent outside systemd hosts.
			if len(handlers) > 0 {
				record := slog.NewRecord(time.Now(), slog.LevelWarn, "systemd journal unavailable", 0)
				record.Add("error", err)
				_ = handlers[0].Handle(context.Background(), record)
			}
		} else {
			handlers = append(handlers, journal)
		}
	}

	return slog.New(slogmulti.Fanout(handlers...)), closeFn, nil
}

// journal field names must be upper case letters, digits and underscores.
func toJournalKey(key string) string {
	key = strings.ToUpper(key)
	return strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, key)
}
