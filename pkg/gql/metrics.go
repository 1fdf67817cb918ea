package gql

// QueryMetrics records one executed GraphQL operation. Entries accumulate
// in memory on the client until the caller clears them.
type QueryMetrics struct {
	QueryName       string  `json:"query_name"`
	ExecutionTimeMS float64 `json:"execution_time_ms"`
	Success         bool    `json:"success"`
	ErrorType       string  `json:"error_type,omitempty"`
	RetryCount      int     `json:"retry_count"`
}

func (c *Client) record(m QueryMetrics) {
	c.metrics = append(c.metrics, m)
	status := "SUCCESS"
	if !m.Success {
		status = "FAILED"
	}
	c.log.Debugf("graphql query [%s] %s in %.2fms (retries: %d)", m.QueryName, status, m.ExecutionTimeMS, m.RetryCount)
}

// Metrics returns a copy of the recorded query metrics.
func (c *Client) Metrics() []QueryMetrics {
	out := make([]QueryMetrics, len(c.metrics))
	copy(out, c.metrics)
	return out
}

// ClearMetrics discards all recorded query metrics.
func (c *Client) ClearMetrics() {
	c.metrics = nil
}
