package netio

import (
	"testing"
)

func TestDialJoinsGroupAndSetsOptions(t *testing.T) {
	conn, err := Dial("224.228.19.78", 0, 1)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if conn.pc == nil {
		t.Fatal("expected a non-nil packet conn")
	}
}
