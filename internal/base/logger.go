// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Logger defines an interface for writing log messages. Any
// logrus.FieldLogger satisfies it.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

var _ Logger = (*logrus.Logger)(nil)

// DefaultLogger logs through the logrus standard logger.
type DefaultLogger struct{}

// Infof implements the Logger.Infof interface.
func (DefaultLogger) Infof(format string, args ...interface{}) {
	logrus.StandardLogger().Infof(format, args...)
}

// Errorf implements the Logger.Errorf interface.
func (DefaultLogger) Errorf(format string, args ...interface{}) {
	logrus.StandardLogger().Errorf(format, args...)
}

// Fatalf implements the Logger.Fatalf interface.
func (DefaultLogger) Fatalf(format string, args ...interface{}) {
	logrus.StandardLogger().Fatalf(format, args...)
}

// NoopLoggerForTesting is a Logger that drops everything. Fatalf still
// panics so that misuse is not silent.
type NoopLoggerForTesting struct{}

var _ Logger = NoopLoggerForTesting{}

// Infof implements the Logger.Infof interface.
func (NoopLoggerForTesting) Infof(format string, args ...interface{}) {}

// Errorf implements the Logger.Errorf interface.
func (NoopLoggerForTesting) Errorf(format string, args ...interface{}) {}

// Fatalf implements the Logger.Fatalf interface.
func (NoopLoggerForTesting) Fatalf(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}
