package relay

import (
	"net/http"
	"time"

	"github.com/mcdev12/roomclocks/go/internal/httputil"
)

type HealthStatus struct {
	Healthy         bool     `json:"healthy"`
	BrokerConnected bool     `json:"broker_connected"`
	Relay           Stats    `json:"relay"`
	Errors          []string `json:"errors"`
}

// HealthChecker reports relay and broker health over HTTP.
type HealthChecker struct {
	relay     *Relay
	connected func() bool
	threshold time.Duration // max age of the last event while changes are pending
}

func NewHealthChecker(relay *Relay, connected func() bool, threshold time.Duration) *HealthChecker {
	return &HealthChecker{relay: relay, connected: connected, threshold: threshold}
}

func (h *HealthChecker) Check() HealthStatus {
	status := HealthStatus{
		Healthy: true,
		Relay:   h.relay.Stats(),
		Errors:  []string{},
	}

	status.BrokerConnected = h.connected == nil || h.connected()
	if !status.BrokerConnected {
		status.Healthy = false
		status.Errors = append(status.Errors, "broker disconnected")
	}

	if !status.Relay.Running {
		status.Healthy = false
		status.Errors = append(status.Errors, "relay not running")
	}

	if status.Relay.Pending > 0 && !status.Relay.LastEvent.IsZero() && time.Since(status.Relay.LastEvent) > h.threshold {
		status.Healthy = false
		status.Errors = append(status.Errors, "no changes published for "+time.Since(status.Relay.LastEvent).Round(time.Second).String())
	}

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check()
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, status)
}
