package bayes

import "math"

// gaussianProcess is a small one-dimensional regression model over the
// rewarded history of a single parameter. The mean prediction is an
// RBF-kernel weighted average of the observed scores; the variance shrinks
// as a point gets closer to observed points.
type gaussianProcess struct {
	x     []float64
	y     []float64
	sigma float64
}

func (gp *gaussianProcess) kernel(a, b float64) float64 {
	d := a - b
	return math.Exp(-(d * d) / (2 * gp.sigma * gp.sigma))
}

func (gp *gaussianProcess) observe(x, y float64) {
	gp.x = append(gp.x, x)
	gp.y = append(gp.y, y)
}

func (gp *gaussianProcess) predict(x float64) (mean, variance float64) {
	if len(gp.x) == 0 {
		return 0, 1
	}

	k := make([]float64, len(gp.x))
	for i, xi := range gp.x {
		k[i] = gp.kernel(x, xi)
	}

	var sum float64
	for i := range gp.x {
		sum += k[i] * gp.y[i]
	}
	mean = sum / float64(len(gp.x))

	variance = 1.0
	for i := range gp.x {
		for j := range gp.x {
			variance -= k[i] * k[j] / float64(len(gp.x))
		}
	}
	if variance < 0 {
		variance = 0
	}
	return mean, variance
}
