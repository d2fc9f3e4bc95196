package upstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryableStatus(t *testing.T) {
	p := DefaultRetryPolicy()

	tests := []struct {
		status    int
		retryable bool
	}{
		{429, true},
		{500, true},
		{502, true},
		{503, true},
		{400, false},
		{401, false},
		{403, false},
		{404, false},
		{200, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.retryable, p.RetryableStatus(tt.status), "status %d", tt.status)
	}
}

func TestDelayExponentialBackoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

	assert.Equal(t, 1*time.Second, p.Delay(0, ""))
	assert.Equal(t, 2*time.Second, p.Delay(1, ""))
	assert.Equal(t, 4*time.Second, p.Delay(2, ""))
}

func TestDelayCappedAtMax(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	assert.Equal(t, 5*time.Second, p.Delay(6, ""))
}

func TestDelayHonorsRetryAfter(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

	assert.Equal(t, 7*time.Second, p.Delay(0, "7"))
	// Retry-After beyond the cap is clamped.
	assert.Equal(t, 30*time.Second, p.Delay(0, "90"))
	// Garbage falls back to the schedule.
	assert.Equal(t, 2*time.Second, p.Delay(1, "soon"))
}
