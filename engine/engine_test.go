package engine

import (
	"context"
	"testing"
	"time"

	"github.com/AdamCarnaffan/hypercast/fifo"
	"github.com/AdamCarnaffan/hypercast/overlay"
	"github.com/AdamCarnaffan/hypercast/telemetry"
)

type countingProtocol struct {
	parsed       int
	maintains    int
	adjacency    int
	neighborhood int
}

func (*countingProtocol) ID() uint8 { return 3 }
func (p *countingProtocol) Parse([]byte) error {
	p.parsed++
	return nil
}
func (p *countingProtocol) Maintain() []byte {
	p.maintains++
	return nil
}
func (*countingProtocol) SenderTrusted(uint32) bool { return true }
func (p *countingProtocol) Counts() (int, int)      { return p.adjacency, p.neighborhood }

func TestHandlePacketRejectsShortPacket(t *testing.T) {
	proto := &countingProtocol{}
	e := New(Config{
		Inbound:  fifo.NewRing(10),
		Outbound: fifo.NewRing(10),
		Protocol: proto,
	})

	e.handlePacket(fifo.NewPacket([]byte{1, 2, 3}))

	if proto.parsed != 0 {
		t.Fatal("expected a too-short packet to never reach the protocol")
	}
}

func TestHandlePacketDispatchesByTopNibble(t *testing.T) {
	proto := &countingProtocol{}
	out := fifo.NewRing(10)
	e := New(Config{
		Inbound:     fifo.NewRing(10),
		Outbound:    out,
		Protocol:    proto,
		SelfLogical: 1,
	})

	sptPacket := make([]byte, overlayMinLength)
	sptPacket[0] = 0x30 // protocol id 3 in the top nibble
	e.handlePacket(fifo.NewPacket(sptPacket))
	if proto.parsed != 1 {
		t.Fatalf("expected protocol.Parse called once, got %d", proto.parsed)
	}

	msg := overlay.NewMessage(1, 0, 5, 99, 0)
	buf, err := overlay.Encode(msg)
	if err != nil {
		t.Fatal(err)
	}
	e.handlePacket(fifo.NewPacket(buf))
	if out.Size() != 1 {
		t.Fatalf("expected overlay packet forwarded to outbound, got size %d", out.Size())
	}
}

func TestRunDrainsInboundAndStopsOnCancel(t *testing.T) {
	proto := &countingProtocol{}
	in := fifo.NewRing(10)
	e := New(Config{
		Inbound:     in,
		Outbound:    fifo.NewRing(10),
		Protocol:    proto,
		SelfLogical: 1,
	})

	sptPacket := make([]byte, overlayMinLength)
	sptPacket[0] = 0x30
	if err := in.Push(fifo.NewPacket(sptPacket)); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	if proto.parsed != 1 {
		t.Fatalf("expected the queued packet to be parsed, got %d", proto.parsed)
	}
}

// TestRunPublishesSnapshotsFromItsOwnGoroutine covers the telemetry
// handoff: runMaintenance must build and send a snapshot itself rather
// than leaving the caller to read the protocol's tables directly.
func TestRunPublishesSnapshotsFromItsOwnGoroutine(t *testing.T) {
	proto := &countingProtocol{adjacency: 3, neighborhood: 2}
	snapshots := make(chan telemetry.Snapshot, 1)
	e := New(Config{
		Inbound:     fifo.NewRing(10),
		Outbound:    fifo.NewRing(10),
		Protocol:    proto,
		SelfLogical: 1,
		Snapshots:   snapshots,
	})

	e.runMaintenance()

	select {
	case snap := <-snapshots:
		if snap.AdjacencySize != 3 || snap.NeighborhoodSize != 2 {
			t.Fatalf("unexpected snapshot: %+v", snap)
		}
	default:
		t.Fatal("expected a snapshot to be published")
	}
}
