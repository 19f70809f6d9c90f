// Package capacity expands per-step power ratings onto the interval timeline.
package capacity

// GWToMW converts capacity units to power units.
const GWToMW = 1e3

// TilePower expands a per-step, per-unit power rating (GW) into a per-interval series
// (MW). Interval t of step i holds the sum over units of rating[i], rating[i+steps],
// rating[i+2*steps], ... scaled to MW.
func TilePower(rating []float64, steps, intervals int) []float64 {
	split := intervals / steps
	out := make([]float64, intervals)

	for i := 0; i < steps; i++ {
		var value float64
		for j := i; j < len(rating); j += steps {
			value += rating[j]
		}
		value *= GWToMW

		for t := i * split; t < (i+1)*split; t++ {
			out[t] = value
		}
	}
	return out
}
