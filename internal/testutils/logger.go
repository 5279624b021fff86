// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package testutils holds helpers shared by tests.
package testutils

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/blockcache/internal/base"
)

// Logger is a base.Logger that writes to a testing.TB.
type Logger struct {
	T testing.TB
}

var _ base.Logger = Logger{}

// Infof implements base.Logger.
func (l Logger) Infof(format string, args ...interface{}) {
	l.T.Logf(format, args...)
}

// Errorf implements base.Logger.
func (l Logger) Errorf(format string, args ...interface{}) {
	l.T.Logf(format, args...)
}

// Fatalf implements base.Logger.
func (l Logger) Fatalf(format string, args ...interface{}) {
	l.T.Helper()
	l.T.Fatalf(format, args...)
}

// RecordingLogger is a base.Logger that keeps every message, for tests that
// assert on what was logged. It is safe for concurrent use.
type RecordingLogger struct {
	Logger

	mu   sync.Mutex
	logs []string
}

var _ base.Logger = (*RecordingLogger)(nil)

// Infof implements base.Logger.
func (l *RecordingLogger) Infof(format string, args ...interface{}) {
	l.record("INFO: ", format, args...)
	l.Logger.Infof(format, args...)
}

// Errorf implements base.Logger.
func (l *RecordingLogger) Errorf(format string, args ...interface{}) {
	l.record("ERROR: ", format, args...)
	l.Logger.Errorf(format, args...)
}

func (l *RecordingLogger) record(prefix, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, prefix+fmt.Sprintf(format, args...))
}

// String returns every recorded message, one per line.
func (l *RecordingLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.logs, "\n")
}
