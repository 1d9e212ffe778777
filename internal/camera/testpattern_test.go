package camera

import "testing"

func TestTestPatternLifecycle(t *testing.T) {
	p := NewTestPattern(32, 16)

	if !p.Active() {
		t.Fatal("expected fresh pattern to be active")
	}

	a, err := p.Frame()
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	if got := a.Bounds(); got.Dx() != 32 || got.Dy() != 16 {
		t.Fatalf("unexpected frame bounds: %v", got)
	}

	b, _ := p.Frame()
	if a.At(0, 0) == b.At(0, 0) {
		t.Error("expected consecutive frames to differ")
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if p.Active() {
		t.Error("expected closed pattern to be inactive")
	}
}
