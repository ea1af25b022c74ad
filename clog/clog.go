// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package clog

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// LogProvider RFC5424 log message levels only Critical, Error, Warn and Debug
type LogProvider interface {
	Critical(format string, v ...interface{})
	Error(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Debug(format string, v ...interface{})
}

// Clog Log internal debugging implementation
type Clog struct {
	provider LogProvider
	// is log output enabled,1: enable, 0: disable
	has uint32
}

// NewLogger Create a new log with the specified prefix, backed by a zap
// sugared logger. prefix becomes the zap logger name on every entry.
func NewLogger(prefix string) Clog {
	base, err := zap.NewProduction()
	if err != nil {
		base = zap.NewNop()
	}
	return Clog{
		zapLogger{base.Sugar().Named(prefix)},
		0,
	}
}

// LogMode set enable or disable log output when you has set provider
func (sf *Clog) LogMode(enable bool) {
	if enable {
		atomic.StoreUint32(&sf.has, 1)
	} else {
		atomic.StoreUint32(&sf.has, 0)
	}
}

// SetLogProvider set provider provider
func (sf *Clog) SetLogProvider(p LogProvider) {
	if p != nil {
		sf.provider = p
	}
}

// Critical Log CRITICAL level message.
func (sf Clog) Critical(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Critical(format, v...)
	}
}

// Error Log ERROR level message.
func (sf Clog) Error(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Error(format, v...)
	}
}

// Warn Log WARN level message.
func (sf Clog) Warn(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Warn(format, v...)
	}
}

// Debug Log DEBUG level message.
func (sf Clog) Debug(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Debug(format, v...)
	}
}

// zapLogger is the default provider, backed by a zap.SugaredLogger. zap has
// no "critical" level above error, so Critical logs at error with a marker.
type zapLogger struct {
	*zap.SugaredLogger
}

var _ LogProvider = (*zapLogger)(nil)

// Critical Log CRITICAL level message.
func (sf zapLogger) Critical(format string, v ...interface{}) {
	sf.Errorf("[CRITICAL] "+format, v...)
}

// Error Log ERROR level message.
func (sf zapLogger) Error(format string, v ...interface{}) {
	sf.Errorf(format, v...)
}

// Warn Log WARN level message.
func (sf zapLogger) Warn(format string, v ...interface{}) {
	sf.Warnf(format, v...)
}

// Debug Log DEBUG level message.
func (sf zapLogger) Debug(format string, v ...interface{}) {
	sf.Debugf(format, v...)
}
