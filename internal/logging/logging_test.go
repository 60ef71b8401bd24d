/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFileName(t *testing.T) {
	got := FileName(time.Date(2026, 10, 16, 23, 59, 0, 0, time.UTC))
	if got != "iod-scheduler_20261016.log" {
		t.Fatalf("FileName = %q", got)
	}
}

func TestOpenFileAppends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

	for _, line := range []string{"one\n", "two\n"} {
		f, err := OpenFile(dir, now)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if _, err := f.WriteString(line); err != nil {
			t.Fatalf("write: %v", err)
		}
		_ = f.Close()
	}

	data, err := os.ReadFile(filepath.Join(dir, "iod-scheduler_20261016.log"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "one\ntwo\n" {
		t.Fatalf("unexpected contents %q", data)
	}
}

func TestSetupWithWriterLevels(t *testing.T) {
	var buf bytes.Buffer

	logger := SetupWithWriter("production", &buf)
	logger.Debug().Msg("hidden")
	logger.Info().Str("resource_key", "SVC1").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level: %s", out)
	}
	if !strings.Contains(out, `"resource_key":"SVC1"`) {
		t.Fatalf("expected JSON line in additional writer, got %s", out)
	}

	if SetupWithWriter("development", nil).GetLevel() != zerolog.DebugLevel {
		t.Fatal("development should log at debug level")
	}
}

func TestSetupWithWriterFansOut(t *testing.T) {
	var file, memory bytes.Buffer

	logger := SetupWithWriter("production", &file, nil, &memory)
	logger.Info().Msg("fan out")

	for name, buf := range map[string]*bytes.Buffer{"file": &file, "memory": &memory} {
		if !strings.Contains(buf.String(), `"message":"fan out"`) {
			t.Errorf("%s writer missed the line: %q", name, buf.String())
		}
	}
}
