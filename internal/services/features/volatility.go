// Package features derives statistics from reference price history.
package features

import "math"

// LogReturns computes r_t = ln(p_t / p_{t-1}). Non-positive prices yield a
// zero return. It returns nil for fewer than two prices.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility is the sample standard deviation of the last window
// returns, per observation interval. It returns 0 when there are fewer than
// window returns or window < 2.
func RealizedVolatility(returns []float64, window int) float64 {
	if window < 2 || len(returns) < window {
		return 0
	}
	var sum, sum2 float64
	for _, r := range returns[len(returns)-window:] {
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// Window keeps the most recent prices in arrival order.
type Window struct {
	buf  []float64
	next int
	full bool
}

// NewWindow creates a window holding up to size prices.
func NewWindow(size int) *Window {
	if size < 2 {
		size = 2
	}
	return &Window{buf: make([]float64, size)}
}

// Push appends a price, evicting the oldest when full.
func (w *Window) Push(p float64) {
	w.buf[w.next] = p
	w.next = (w.next + 1) % len(w.buf)
	if w.next == 0 {
		w.full = true
	}
}

// Len is the number of prices held.
func (w *Window) Len() int {
	if w.full {
		return len(w.buf)
	}
	return w.next
}

// Prices returns the held prices, oldest first.
func (w *Window) Prices() []float64 {
	if !w.full {
		return append([]float64(nil), w.buf[:w.next]...)
	}
	out := make([]float64, 0, len(w.buf))
	out = append(out, w.buf[w.next:]...)
	return append(out, w.buf[:w.next]...)
}

// Volatility is the realized volatility over every return in the window.
// ok is false until the window holds at least three prices.
func (w *Window) Volatility() (float64, bool) {
	r := LogReturns(w.Prices())
	if len(r) < 2 {
		return 0, false
	}
	return RealizedVolatility(r, len(r)), true
}
