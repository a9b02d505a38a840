package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
)

func TestNilDiscardsEverything(t *testing.T) {
	var n Nil
	n.Notify("anything", KV{"a": 1}) // must not panic
}

func TestLogrusNotifyRecordsEventAndFields(t *testing.T) {
	base, hook := logrustest.NewNullLogger()
	base.SetLevel(logrus.InfoLevel)

	l := NewLogrus(base, KV{"node": 7})
	l.Notify("spt.beacon.sent", KV{"sender": 42})

	entries := hook.AllEntries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Data["event"] != "spt.beacon.sent" || e.Data["node"] != 7 || e.Data["sender"] != 42 {
		t.Fatalf("unexpected fields: %+v", e.Data)
	}
}

func TestLogrusNotifyErrorUsesErrorSeverity(t *testing.T) {
	base, hook := logrustest.NewNullLogger()
	base.SetLevel(logrus.InfoLevel)

	l := NewLogrus(base, nil)
	l.NotifyError("overlay.malformed", KV{"reason": "short"})

	entries := hook.AllEntries()
	if len(entries) != 1 || entries[0].Level != logrus.ErrorLevel {
		t.Fatalf("expected one error-level entry, got %+v", entries)
	}
}

func TestWithTraceTagsSubsequentEvents(t *testing.T) {
	base, hook := logrustest.NewNullLogger()
	base.SetLevel(logrus.InfoLevel)

	l := NewLogrus(base, nil).WithTrace("abc123")
	l.Notify("engine.forwarded", nil)

	entries := hook.AllEntries()
	if len(entries) != 1 || entries[0].Data["trace_id"] != "abc123" {
		t.Fatalf("expected trace_id field, got %+v", entries)
	}
}
