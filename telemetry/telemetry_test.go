package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestObserveAndScrape(t *testing.T) {
	r := NewRegistry()
	r.BeaconSent()
	r.BeaconReceived()
	r.PacketForwarded()
	r.PacketDropped("loop_suppressed")
	r.Observe(Snapshot{AdjacencySize: 3, NeighborhoodSize: 2, InboundDepth: 1, OutboundDepth: 0})

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"hypercast_beacons_sent_total 1",
		"hypercast_beacons_received_total 1",
		"hypercast_overlay_packets_forwarded_total 1",
		`hypercast_packets_dropped_total{reason="loop_suppressed"} 1`,
		"hypercast_adjacency_size 3",
		"hypercast_neighborhood_size 2",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics output to contain %q, got:\n%s", want, body)
		}
	}
}
