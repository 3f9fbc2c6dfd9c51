package sensors

import "math"

// LinearFilter runs a discrete linear filter over a wrapped PIDSource:
// each PIDGet pulls one fresh sample from the source and produces one
// output. Use one filter per source type; alternating the query type
// through a single filter mixes two sample streams.
type LinearFilter struct {
	src      PIDSource
	inGains  []float64
	outGains []float64
	inputs   []float64
	outputs  []float64
}

// NewLinearFilter builds a filter with explicit feedforward (input)
// and feedback (output) gains.
func NewLinearFilter(src PIDSource, inGains, outGains []float64) *LinearFilter {
	return &LinearFilter{
		src:      src,
		inGains:  append([]float64(nil), inGains...),
		outGains: append([]float64(nil), outGains...),
		inputs:   make([]float64, len(inGains)),
		outputs:  make([]float64, len(outGains)),
	}
}

// MovingAverage builds a finite-window average over the last taps
// samples. Fast to settle, linear phase.
func MovingAverage(src PIDSource, taps int) *LinearFilter {
	if taps < 1 {
		taps = 1
	}
	gains := make([]float64, taps)
	for i := range gains {
		gains[i] = 1 / float64(taps)
	}
	return NewLinearFilter(src, gains, nil)
}

// SinglePoleIIR builds a first-order low-pass with the given time
// constant, sampled every period.
func SinglePoleIIR(src PIDSource, timeConstant, period float64) *LinearFilter {
	gain := math.Exp(-period / timeConstant)
	return NewLinearFilter(src, []float64{1 - gain}, []float64{-gain})
}

// HighPass builds a first-order high-pass with the given time
// constant, sampled every period. A constant input decays to zero.
func HighPass(src PIDSource, timeConstant, period float64) *LinearFilter {
	gain := math.Exp(-period / timeConstant)
	return NewLinearFilter(src, []float64{gain, -gain}, []float64{-gain})
}

// PIDGet pulls one sample from the source and returns the new filter
// output.
func (f *LinearFilter) PIDGet(which SourceType) float64 {
	pushFront(f.inputs, f.src.PIDGet(which))
	var out float64
	for i, g := range f.inGains {
		out += f.inputs[i] * g
	}
	for i, g := range f.outGains {
		out -= f.outputs[i] * g
	}
	pushFront(f.outputs, out)
	return out
}

// Get returns the last output without pulling a new sample.
func (f *LinearFilter) Get() float64 {
	if len(f.outputs) > 0 {
		return f.outputs[0]
	}
	// A pure FIR filter keeps no output ring; recompute from inputs.
	var out float64
	for i, g := range f.inGains {
		out += f.inputs[i] * g
	}
	return out
}

// Reset clears the sample history.
func (f *LinearFilter) Reset() {
	for i := range f.inputs {
		f.inputs[i] = 0
	}
	for i := range f.outputs {
		f.outputs[i] = 0
	}
}

func pushFront(buf []float64, v float64) {
	if len(buf) == 0 {
		return
	}
	copy(buf[1:], buf[:len(buf)-1])
	buf[0] = v
}
