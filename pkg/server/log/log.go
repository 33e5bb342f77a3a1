/* Copyright 2025 Leafsync Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package log provides interfaces to write structured logs
package log

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const (
	fieldKeyLevel     = "level"
	fieldKeyMessage   = "msg"
	fieldKeyTimestamp = "ts"

	// LevelDebug represents debug log level
	LevelDebug = "debug"
	// LevelInfo represents info log level
	LevelInfo = "info"
	// LevelWarn represents warn log level
	LevelWarn = "warn"
	// LevelError represents error log level
	LevelError = "error"
)

// currentLevel is the currently configured log level
var currentLevel = LevelInfo

// SetLevel sets the global log level
func SetLevel(level string) {
	currentLevel = level
}

func levelPriority(level string) int {
	switch level {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	}

	return 1
}

func enabled(level string) bool {
	return levelPriority(level) >= levelPriority(currentLevel)
}

// Fields represents a set of information to be included in the log
type Fields map[string]interface{}

// Entry represents a log entry
type Entry struct {
	Fields    Fields
	Timestamp time.Time
}

// WithFields creates a log entry with the given fields
func WithFields(fields Fields) Entry {
	return Entry{
		Fields:    fields,
		Timestamp: time.Now().UTC(),
	}
}

func (e Entry) log(level, msg string) {
	if !enabled(level) {
		return
	}

	data := Fields{}
	for k, v := range e.Fields {
		data[k] = v
	}
	data[fieldKeyLevel] = level
	data[fieldKeyMessage] = msg
	data[fieldKeyTimestamp] = e.Timestamp.Format(time.RFC3339)

	b, err := json.Marshal(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "leafsync log: marshalling entry: %s\n", err)
		return
	}

	fmt.Fprintln(os.Stdout, string(b))
}

// Debug logs a debug message
func (e Entry) Debug(msg string) {
	e.log(LevelDebug, msg)
}

// Info logs an info message
func (e Entry) Info(msg string) {
	e.log(LevelInfo, msg)
}

// Warn logs a warning message
func (e Entry) Warn(msg string) {
	e.log(LevelWarn, msg)
}

// Error logs an error message
func (e Entry) Error(msg string) {
	e.log(LevelError, msg)
}

// Info logs an info message without fields
func Info(msg string) {
	WithFields(nil).Info(msg)
}

// Error logs an error message without fields
func Error(msg string) {
	WithFields(nil).Error(msg)
}

// ErrorWrap logs an error message along with the error
func ErrorWrap(err error, msg string) {
	WithFields(Fields{"err": err.Error()}).Error(msg)
}
