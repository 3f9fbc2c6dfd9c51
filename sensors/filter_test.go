package sensors

import (
	"math"
	"testing"
)

// feed replays a fixed sample sequence, then repeats the last value.
type feed struct {
	samples []float64
	calls   int
}

func (f *feed) PIDGet(SourceType) float64 {
	i := f.calls
	f.calls++
	if i >= len(f.samples) {
		i = len(f.samples) - 1
	}
	return f.samples[i]
}

func TestMovingAverageSettles(t *testing.T) {
	src := &feed{samples: []float64{1}}
	f := MovingAverage(src, 4)

	wants := []float64{0.25, 0.5, 0.75, 1, 1}
	for i, want := range wants {
		if got := f.PIDGet(Displacement); math.Abs(got-want) > 1e-12 {
			t.Errorf("Sample %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestMovingAverageWindowSlides(t *testing.T) {
	src := &feed{samples: []float64{4, 8, 12}}
	f := MovingAverage(src, 2)

	f.PIDGet(Displacement) // 2
	if got := f.PIDGet(Displacement); math.Abs(got-6) > 1e-12 {
		t.Errorf("Expected 6, got %v", got)
	}
	if got := f.PIDGet(Displacement); math.Abs(got-10) > 1e-12 {
		t.Errorf("Expected the oldest sample dropped, got %v", got)
	}
}

func TestSinglePoleIIRConverges(t *testing.T) {
	src := &feed{samples: []float64{1}}
	f := SinglePoleIIR(src, 1, 1)

	prev := 0.0
	for i := 0; i < 20; i++ {
		got := f.PIDGet(Displacement)
		if got <= prev || got > 1 {
			t.Fatalf("Sample %d: expected a monotonic rise toward 1, got %v after %v", i, got, prev)
		}
		prev = got
	}
	if math.Abs(prev-1) > 1e-8 {
		t.Errorf("Expected convergence to 1, got %v", prev)
	}
}

func TestHighPassRejectsDC(t *testing.T) {
	src := &feed{samples: []float64{1}}
	f := HighPass(src, 1, 1)

	first := f.PIDGet(Displacement)
	if first <= 0 || first >= 1 {
		t.Fatalf("Expected the step edge to pass partially, got %v", first)
	}
	var last float64
	for i := 0; i < 40; i++ {
		last = f.PIDGet(Displacement)
	}
	if math.Abs(last) > 1e-8 {
		t.Errorf("Expected the constant input to decay to 0, got %v", last)
	}
}

func TestFilterGetDoesNotSample(t *testing.T) {
	src := &feed{samples: []float64{3}}
	f := SinglePoleIIR(src, 1, 1)

	want := f.PIDGet(Displacement)
	if got := f.Get(); got != want {
		t.Errorf("Expected the last output, got %v", got)
	}
	f.Get()
	if src.calls != 1 {
		t.Errorf("Expected Get to leave the source alone, got %d calls", src.calls)
	}
}

func TestFilterGetOnFIR(t *testing.T) {
	src := &feed{samples: []float64{4}}
	f := MovingAverage(src, 2)
	f.PIDGet(Displacement)
	if got := f.Get(); math.Abs(got-2) > 1e-12 {
		t.Errorf("Expected 2, got %v", got)
	}
}

func TestFilterReset(t *testing.T) {
	src := &feed{samples: []float64{5}}
	f := SinglePoleIIR(src, 1, 1)
	f.PIDGet(Displacement)
	f.Reset()
	if got := f.Get(); got != 0 {
		t.Errorf("Expected 0 after reset, got %v", got)
	}
}
