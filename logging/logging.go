/*
 * VC5 load balancer. Copyright (C) 2021-present David Coles
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

// Package logging provides the small structured-event notification
// interface every long-running task logs through, backed by logrus.
package logging

import "github.com/sirupsen/logrus"

// KV is a structured field set attached to one log event.
type KV map[string]interface{}

// Logger is implemented by every concrete logging backend. It is
// satisfied structurally by spt.Notifier and engine.Notifier without any
// of those packages importing this one.
type Logger interface {
	Notify(event string, fields map[string]interface{})
}

// Nil discards everything.
type Nil struct{}

// Notify implements Logger.
func (Nil) Notify(string, map[string]interface{}) {}

// Logrus is a Logger backed by github.com/sirupsen/logrus.
type Logrus struct {
	entry *logrus.Entry
}

// NewLogrus wraps a *logrus.Logger (or nil for the package-level default)
// as a Logger, optionally tagging every event with static fields (e.g. a
// node's logical address).
func NewLogrus(base *logrus.Logger, static KV) *Logrus {
	if base == nil {
		base = logrus.StandardLogger()
	}
	entry := logrus.NewEntry(base)
	if len(static) > 0 {
		entry = entry.WithFields(logrus.Fields(static))
	}
	return &Logrus{entry: entry}
}

// Notify implements Logger. Events are logged at Info severity; callers
// that need Error severity should use NotifyError.
func (l *Logrus) Notify(event string, fields map[string]interface{}) {
	l.entry.WithFields(logrus.Fields(fields)).WithField("event", event).Info(event)
}

// NotifyError logs event at Error severity, for malformed-packet and
// protocol-mismatch conditions.
func (l *Logrus) NotifyError(event string, fields map[string]interface{}) {
	l.entry.WithFields(logrus.Fields(fields)).WithField("event", event).Error(event)
}

// WithTrace returns a Logrus tagging every subsequent event with a trace
// id, for following one packet's parse/forward lifecycle through the log.
func (l *Logrus) WithTrace(traceID string) *Logrus {
	return &Logrus{entry: l.entry.WithField("trace_id", traceID)}
}
