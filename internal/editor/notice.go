/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"errors"
	"log/slog"
	"slices"
	"time"
)

// ErrDisabled is returned by mutating operations when the session started
// without a working renderer.
var ErrDisabled = errors.New("editor is read-only: rendering backend unavailable")

// Severity grades a Notice.
type Severity int

const (
	Info Severity = iota
	Warning
	Failure
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Failure:
		return "error"
	}
	return "info"
}

// Notice is a user-visible, dismissible message about an operation.
type Notice struct {
	Severity Severity
	Op       string
	Message  string
	Err      error
	TS       time.Time
}

// OnNotice registers fn for notices. Calling the returned func removes it.
func (s *Session) OnNotice(fn func(Notice)) (cancel func()) {
	id := s.nextSub
	s.nextSub++
	s.noticeSubs[id] = fn
	return func() { delete(s.noticeSubs, id) }
}

// Notices returns the most recent notices, oldest first. Notices raised
// while starting up are only reachable this way.
func (s *Session) Notices() []Notice { return slices.Clone(s.recent) }

const maxRecentNotices = 20

func (s *Session) publish(n Notice) {
	n.TS = s.now()
	s.recent = append(s.recent, n)
	if len(s.recent) > maxRecentNotices {
		s.recent = slices.Delete(s.recent, 0, len(s.recent)-maxRecentNotices)
	}
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.noticeSubs[i]; ok {
			fn(n)
		}
	}
}

// fail logs err, publishes it as a notice and returns it.
func (s *Session) fail(op string, sev Severity, msg string, err error) error {
	l := s.log.With(slog.String("op", op))
	if sev == Failure {
		l.ErrorContext(s.logCtx, msg, slog.Any("err", err))
	} else {
		l.WarnContext(s.logCtx, msg, slog.Any("err", err))
	}
	s.publish(Notice{Severity: sev, Op: op, Message: msg, Err: err})
	return err
}
