package types

import "time"

// HealthState classifies how usable a component is.
type HealthState string

const (
	// HealthStateHealthy means the component is fully operational.
	HealthStateHealthy HealthState = "healthy"

	// HealthStateDegraded means the component works but with reduced
	// capability, for example an embedding provider that is rate limited.
	HealthStateDegraded HealthState = "degraded"

	// HealthStateUnhealthy means the component cannot serve requests.
	HealthStateUnhealthy HealthState = "unhealthy"
)

func (s HealthState) String() string { return string(s) }

// HealthStatus is a point-in-time health report returned by the Health
// method of graph clients and embedding providers.
type HealthStatus struct {
	State     HealthState `yaml:"state" json:"state"`
	Message   string      `yaml:"message,omitempty" json:"message,omitempty"`
	CheckedAt time.Time   `yaml:"checked_at" json:"checked_at"`
}

// NewHealthStatus stamps a status with the current time.
func NewHealthStatus(state HealthState, message string) HealthStatus {
	return HealthStatus{State: state, Message: message, CheckedAt: time.Now()}
}

// Healthy reports a fully operational component.
func Healthy(message string) HealthStatus {
	return NewHealthStatus(HealthStateHealthy, message)
}

// Degraded reports a component with reduced capability.
func Degraded(message string) HealthStatus {
	return NewHealthStatus(HealthStateDegraded, message)
}

// Unhealthy reports a component that cannot serve requests.
func Unhealthy(message string) HealthStatus {
	return NewHealthStatus(HealthStateUnhealthy, message)
}

func (h HealthStatus) IsHealthy() bool   { return h.State == HealthStateHealthy }
func (h HealthStatus) IsDegraded() bool  { return h.State == HealthStateDegraded }
func (h HealthStatus) IsUnhealthy() bool { return h.State == HealthStateUnhealthy }
