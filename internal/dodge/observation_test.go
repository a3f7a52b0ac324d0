package dodge

import (
	"math"
	"testing"
)

func TestRelativeEncoding(t *testing.T) {
	s := State{AgentX: 3, BlockLeft: 1, BlockRight: 5, BlockY: 2}
	got := encodeRelative(s, 7, 6)
	want := Observation{3.0 / 6.0, 2.0 / 6.0, 2.0 / 7.0, -2.0 / 7.0}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("component %d: want %v, got %v", i, want[i], got[i])
		}
	}
	for i, v := range got {
		if v < -1 || v > 1 {
			t.Fatalf("component %d out of range: %v", i, v)
		}
	}
}

func TestBlockHeightDecoding(t *testing.T) {
	s := State{AgentX: 2, BlockLeft: 0, BlockRight: 1, BlockY: 5}
	height := 6
	for _, mode := range []StateMode{StateAbsolute, StateRelative} {
		enc, err := mode.encoder()
		if err != nil {
			t.Fatalf("%s: %v", mode, err)
		}
		if got := mode.BlockHeight(enc(s, 7, height), height); got != 5 {
			t.Fatalf("%s: expected height 5, got %d", mode, got)
		}
	}
}
