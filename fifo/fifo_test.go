package fifo

import (
	"context"
	"testing"
	"time"
)

func TestPushPopAccounting(t *testing.T) {
	r := NewRing(4)

	pushes, pops := 0, 0

	for i := 0; i < 4; i++ {
		if err := r.Push(NewPacket([]byte{byte(i)})); err != nil {
			t.Fatal(err)
		}
		pushes++
	}

	if err := r.Push(NewPacket([]byte{9})); err != ErrFull {
		t.Fatalf("expected ErrFull, got %v", err)
	}

	if _, ok := r.Pop(); !ok {
		t.Fatal("expected a packet")
	}
	pops++

	if got := r.Size(); got != pushes-pops {
		t.Fatalf("size = %d, want %d", got, pushes-pops)
	}
}

func TestPopOrderAndWraparound(t *testing.T) {
	r := NewRing(3)

	r.Push(NewPacket([]byte{1}))
	r.Push(NewPacket([]byte{2}))

	p, _ := r.Pop()
	if p.Data[0] != 1 {
		t.Fatalf("expected first-in-first-out order")
	}

	r.Push(NewPacket([]byte{3}))
	r.Push(NewPacket([]byte{4})) // wraps the ring

	for _, want := range []byte{2, 3, 4} {
		p, ok := r.Pop()
		if !ok || p.Data[0] != want {
			t.Fatalf("expected %d, got %v ok=%v", want, p, ok)
		}
	}

	if _, ok := r.Pop(); ok {
		t.Fatal("expected empty ring")
	}
}

func TestPopEmpty(t *testing.T) {
	r := NewRing(2)
	if _, ok := r.Pop(); ok {
		t.Fatal("expected empty")
	}
}

func TestPopWaitUnblocksOnPush(t *testing.T) {
	r := NewRing(2)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan *Packet, 1)
	go func() {
		p, _ := r.PopWait(ctx)
		done <- p
	}()

	time.Sleep(10 * time.Millisecond)
	r.Push(NewPacket([]byte{42}))

	select {
	case p := <-done:
		if p == nil || p.Data[0] != 42 {
			t.Fatalf("unexpected packet: %v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("PopWait did not unblock on push")
	}
}

func TestPopWaitRespectsContext(t *testing.T) {
	r := NewRing(2)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, ok := r.PopWait(ctx); ok {
		t.Fatal("expected PopWait to time out")
	}
}

func TestRingNeverReallocates(t *testing.T) {
	r := NewRing(2)
	if r.Capacity() != 2 {
		t.Fatalf("capacity changed")
	}
	r.Push(NewPacket(nil))
	r.Push(NewPacket(nil))
	r.Pop()
	r.Push(NewPacket(nil))
	if r.Capacity() != 2 {
		t.Fatalf("capacity changed after churn")
	}
}
