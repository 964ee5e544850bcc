package model

// Point is a single time-series sample addressed to one metric
type Point struct {
	Metric    string            `json:"metric"`
	Tags      map[string]string `json:"tags,omitempty"`
	Fields    map[string]any    `json:"fields"`
	Timestamp int64             `json:"timestamp"` // unix millis
}

// WriteRequest is one logical write, possibly spanning many metrics
type WriteRequest struct {
	Points []Point `json:"points"`
}

// Metrics returns the distinct metric names of the request in first-seen order
func (r *WriteRequest) Metrics() []string {
	seen := make(map[string]bool, len(r.Points))
	metrics := make([]string, 0, len(r.Points))
	for _, p := range r.Points {
		if seen[p.Metric] {
			continue
		}
		seen[p.Metric] = true
		metrics = append(metrics, p.Metric)
	}
	return metrics
}
