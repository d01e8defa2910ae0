package pix

import "math"

// Mean returns the mean pixel value across all channels.
func (m *Image) Mean() float64 {
	if len(m.Pix) == 0 {
		return 0
	}
	var sum uint64
	for _, v := range m.Pix {
		sum += uint64(v)
	}
	return float64(sum) / float64(len(m.Pix))
}

// ChannelMeans returns the per-channel means (b, g, r).
func (m *Image) ChannelMeans() (b, g, r float64) {
	n := m.W * m.H
	if n == 0 {
		return 0, 0, 0
	}
	var sb, sg, sr uint64
	for i := 0; i < len(m.Pix); i += 3 {
		sb += uint64(m.Pix[i])
		sg += uint64(m.Pix[i+1])
		sr += uint64(m.Pix[i+2])
	}
	return float64(sb) / float64(n), float64(sg) / float64(n), float64(sr) / float64(n)
}

// Std returns the standard deviation of all channel samples.
func (m *Image) Std() float64 {
	n := len(m.Pix)
	if n == 0 {
		return 0
	}
	mean := m.Mean()
	var acc float64
	for _, v := range m.Pix {
		d := float64(v) - mean
		acc += d * d
	}
	return math.Sqrt(acc / float64(n))
}

// GrayMean returns the per-pixel mean-of-channels grayscale plane.
func (m *Image) GrayMean() []float64 {
	out := make([]float64, m.W*m.H)
	for p := 0; p < len(out); p++ {
		i := p * 3
		out[p] = (float64(m.Pix[i]) + float64(m.Pix[i+1]) + float64(m.Pix[i+2])) / 3
	}
	return out
}

// GrayMax returns the per-pixel max-channel grayscale plane. Max-channel
// keeps single-hue sprites (blue-only or red-only palettes) at full
// brightness where weighted luminance would darken them.
func (m *Image) GrayMax() []uint8 {
	out := make([]uint8, m.W*m.H)
	for p := 0; p < len(out); p++ {
		i := p * 3
		v := m.Pix[i]
		if m.Pix[i+1] > v {
			v = m.Pix[i+1]
		}
		if m.Pix[i+2] > v {
			v = m.Pix[i+2]
		}
		out[p] = v
	}
	return out
}

// CountWhere counts pixels satisfying the predicate over (b, g, r).
func (m *Image) CountWhere(pred func(b, g, r uint8) bool) int {
	n := 0
	for i := 0; i < len(m.Pix); i += 3 {
		if pred(m.Pix[i], m.Pix[i+1], m.Pix[i+2]) {
			n++
		}
	}
	return n
}

// RatioWhere returns CountWhere / pixel count.
func (m *Image) RatioWhere(pred func(b, g, r uint8) bool) float64 {
	n := m.W * m.H
	if n == 0 {
		return 0
	}
	return float64(m.CountWhere(pred)) / float64(n)
}

// Mask returns a boolean plane from a per-pixel predicate.
func (m *Image) Mask(pred func(b, g, r uint8) bool) []bool {
	out := make([]bool, m.W*m.H)
	for p := 0; p < len(out); p++ {
		i := p * 3
		out[p] = pred(m.Pix[i], m.Pix[i+1], m.Pix[i+2])
	}
	return out
}

// MeanAbsDiff returns the mean absolute per-byte difference between two
// same-sized images. Differently sized inputs report maximum difference so
// callers treat them as changed.
func MeanAbsDiff(a, b *Image) float64 {
	if a == nil || b == nil || a.W != b.W || a.H != b.H || len(a.Pix) == 0 {
		return 255
	}
	var sum uint64
	for i := range a.Pix {
		d := int(a.Pix[i]) - int(b.Pix[i])
		if d < 0 {
			d = -d
		}
		sum += uint64(d)
	}
	return float64(sum) / float64(len(a.Pix))
}

// RedDominant reports the standard "-LIFE-" text redness test used across
// the classifier and calibration: R above the floor and at least twice both
// other channels.
func RedDominant(b, g, r float64, rMin float64) bool {
	return r > rMin && r > g*2 && r > b*2
}

