// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package log

import "fmt"

// Helper offers the usual sugar over a Logger.
type Helper struct {
	logger Logger
}

// NewHelper returns a Helper wrapping logger.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

// Log logs keyvals at the given level.
func (h *Helper) Log(level Level, keyvals ...interface{}) {
	h.logger.Log(level, keyvals...) //nolint:errcheck
}

// Debug logs a message at debug level.
func (h *Helper) Debug(a ...interface{}) {
	h.logger.Log(LevelDebug, DefaultMessageKey, fmt.Sprint(a...)) //nolint:errcheck
}

// Debugf logs a formatted message at debug level.
func (h *Helper) Debugf(format string, a ...interface{}) {
	h.logger.Log(LevelDebug, DefaultMessageKey, fmt.Sprintf(format, a...)) //nolint:errcheck
}

// Info logs a message at info level.
func (h *Helper) Info(a ...interface{}) {
	h.logger.Log(LevelInfo, DefaultMessageKey, fmt.Sprint(a...)) //nolint:errcheck
}

// Infof logs a formatted message at info level.
func (h *Helper) Infof(format string, a ...interface{}) {
	h.logger.Log(LevelInfo, DefaultMessageKey, fmt.Sprintf(format, a...)) //nolint:errcheck
}

// Warn logs a message at warn level.
func (h *Helper) Warn(a ...interface{}) {
	h.logger.Log(LevelWarn, DefaultMessageKey, fmt.Sprint(a...)) //nolint:errcheck
}

// Warnf logs a formatted message at warn level.
func (h *Helper) Warnf(format string, a ...interface{}) {
	h.logger.Log(LevelWarn, DefaultMessageKey, fmt.Sprintf(format, a...)) //nolint:errcheck
}

// Error logs a message at error level.
func (h *Helper) Error(a ...interface{}) {
	h.logger.Log(LevelError, DefaultMessageKey, fmt.Sprint(a...)) //nolint:errcheck
}

// Errorf logs a formatted message at error level.
func (h *Helper) Errorf(format string, a ...interface{}) {
	h.logger.Log(LevelError, DefaultMessageKey, fmt.Sprintf(format, a...)) //nolint:errcheck
}
