package model

// Health states reported by the health probe.
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"

	ServiceUp   = "up"
	ServiceDown = "down"
)

// HealthReport is the wire shape of the health probe.
type HealthReport struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Healthy reports whether every dependency answered.
func (h HealthReport) Healthy() bool {
	return h.Status == HealthHealthy
}
