package forecast

// Regression is an ordinary least-squares fit y = Slope*x + Intercept, where x is
// the zero-based index into the fitted series.
type Regression struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	R2        float64 `json:"r2"`
}

// At evaluates the fitted line at index x.
func (r Regression) At(x float64) float64 {
	return r.Slope*x + r.Intercept
}

// LinearRegression fits data against its indices. Fewer than two points yield a
// flat line through the single value (or zero) with R2 = 0.
func LinearRegression(data []float64) Regression {
	n := len(data)
	if n < 2 {
		var intercept float64
		if n == 1 {
			intercept = data[0]
		}
		return Regression{Intercept: intercept}
	}

	xMean := float64(n-1) / 2
	var sumY float64
	for _, y := range data {
		sumY += y
	}
	yMean := sumY / float64(n)

	var ssXY, ssXX float64
	for i, y := range data {
		dx := float64(i) - xMean
		ssXY += dx * (y - yMean)
		ssXX += dx * dx
	}

	var slope float64
	if ssXX != 0 {
		slope = ssXY / ssXX
	}
	intercept := yMean - slope*xMean

	var ssRes, ssTot float64
	for i, y := range data {
		fitted := slope*float64(i) + intercept
		ssRes += (y - fitted) * (y - fitted)
		ssTot += (y - yMean) * (y - yMean)
	}

	var r2 float64
	if ssTot != 0 {
		r2 = 1 - ssRes/ssTot
	}

	return Regression{Slope: slope, Intercept: intercept, R2: r2}
}

func toFloats(counts []int) []float64 {
	out := make([]float64, len(counts))
	for i, c := range counts {
		out[i] = float64(c)
	}
	return out
}
