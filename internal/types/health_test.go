package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthStatus_Constructors(t *testing.T) {
	tests := []struct {
		name      string
		status    HealthStatus
		wantState HealthState
	}{
		{"healthy", Healthy("graph connection verified"), HealthStateHealthy},
		{"degraded", Degraded("provider rate limited"), HealthStateDegraded},
		{"unhealthy", Unhealthy("driver not connected"), HealthStateUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantState, tt.status.State)
			assert.NotEmpty(t, tt.status.Message)
			assert.WithinDuration(t, time.Now(), tt.status.CheckedAt, time.Second)
		})
	}
}

func TestHealthStatus_Predicates(t *testing.T) {
	healthy := Healthy("")
	assert.True(t, healthy.IsHealthy())
	assert.False(t, healthy.IsDegraded())
	assert.False(t, healthy.IsUnhealthy())

	degraded := Degraded("")
	assert.False(t, degraded.IsHealthy())
	assert.True(t, degraded.IsDegraded())

	unhealthy := Unhealthy("")
	assert.False(t, unhealthy.IsHealthy())
	assert.True(t, unhealthy.IsUnhealthy())
}

func TestHealthState_String(t *testing.T) {
	assert.Equal(t, "healthy", HealthStateHealthy.String())
	assert.Equal(t, "degraded", HealthStateDegraded.String())
	assert.Equal(t, "unhealthy", HealthStateUnhealthy.String())
}
