/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FilePrefix names the daily log files written to the log directory.
const FilePrefix = "iod-scheduler"

// Setup configures zerolog for the process.
func Setup(environment string) zerolog.Logger {
	return SetupWithWriter(environment)
}

// SetupWithWriter configures zerolog with additional JSON writers (the daily
// log file, the in-memory run log). Nil writers are ignored. Console output
// goes to stderr so command output on stdout stays clean.
func SetupWithWriter(environment string, additional ...io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level := zerolog.InfoLevel
	if environment == "development" {
		level = zerolog.DebugLevel
	}

	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	writers := []io.Writer{consoleWriter}
	for _, w := range additional {
		if w != nil {
			writers = append(writers, w)
		}
	}

	var writer io.Writer = consoleWriter
	if len(writers) > 1 {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(writer).With().Timestamp().Logger().Level(level)
	log.Logger = logger
	return logger
}

// FileName returns the log file name for the day of now, e.g.
// iod-scheduler_20261016.log.
func FileName(now time.Time) string {
	return fmt.Sprintf("%s_%s.log", FilePrefix, now.UTC().Format("20060102"))
}

// OpenFile opens (appending) the log file for the day of now inside dir,
// creating the directory when needed.
func OpenFile(dir string, now time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	path := filepath.Join(dir, FileName(now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
