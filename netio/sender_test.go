package netio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AdamCarnaffan/hypercast/fifo"
)

type fakeWriter struct {
	writes [][]byte
	errOn  int // index (0-based) at which WriteTo returns an error, or -1
}

func (f *fakeWriter) WriteTo(buf []byte) error {
	idx := len(f.writes)
	data := make([]byte, len(buf))
	copy(data, buf)
	f.writes = append(f.writes, data)
	if f.errOn >= 0 && idx == f.errOn {
		return errors.New("fakeWriter: write failed")
	}
	return nil
}

func TestSenderWritesQueuedPacketsInOrder(t *testing.T) {
	outbound := fifo.NewRing(4)
	outbound.Push(fifo.NewPacket([]byte("one")))
	outbound.Push(fifo.NewPacket([]byte("two")))

	conn := &fakeWriter{errOn: -1}
	s := newSender(conn, outbound, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(conn.writes) < 2 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for sends")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if string(conn.writes[0]) != "one" || string(conn.writes[1]) != "two" {
		t.Fatalf("unexpected send order: %q", conn.writes)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sender did not stop on cancellation")
	}
}

func TestSenderContinuesAfterWriteError(t *testing.T) {
	outbound := fifo.NewRing(4)
	outbound.Push(fifo.NewPacket([]byte("bad")))
	outbound.Push(fifo.NewPacket([]byte("good")))

	conn := &fakeWriter{errOn: 0}
	s := newSender(conn, outbound, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(conn.writes) < 2 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for sends")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if string(conn.writes[1]) != "good" {
		t.Fatalf("expected second send to succeed, got %q", conn.writes[1])
	}
}
