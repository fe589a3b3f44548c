package metric

import "fmt"

// Metric is the distance metric of a collection.
type Metric string

const (
	// Cosine ranks by cosine similarity (higher is better).
	Cosine Metric = "cosine"
	// Dot ranks by inner product (higher is better).
	Dot Metric = "dot"
	// Euclid ranks by Euclidean distance (lower is better).
	Euclid Metric = "euclid"
)

// IsValid checks if the metric is supported.
func (m Metric) IsValid() bool {
	return m == Cosine || m == Dot || m == Euclid
}

// HigherIsBetter reports the score ordering direction of the metric.
func (m Metric) HigherIsBetter() bool {
	return m != Euclid
}

// Better reports whether score a ranks strictly ahead of score b under
// the metric's ordering.
func (m Metric) Better(a, b float64) bool {
	if m == Euclid {
		return a < b
	}
	return a > b
}

// Parse converts a string to a Metric.
func Parse(s string) (Metric, error) {
	m := Metric(s)
	if !m.IsValid() {
		return "", fmt.Errorf("unknown distance metric %q", s)
	}
	return m, nil
}
