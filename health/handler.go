package health

import (
	"encoding/json"
	"net/http"
)

// Handler returns an HTTP handler serving the aggregated system health as
// JSON. Unhealthy systems answer 503 so load balancers and orchestrators can
// act on the plain status code; degraded systems still answer 200 because
// the pipeline is making progress.
func Handler(m *Monitor, systemName string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		status := m.AggregateHealth(systemName)

		w.Header().Set("Content-Type", "application/json")
		if status.IsUnhealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		if err := json.NewEncoder(w).Encode(status); err != nil {
			// Headers are already gone; nothing useful left to do.
			return
		}
	}
}
