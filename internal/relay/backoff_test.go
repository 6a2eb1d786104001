package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay_DoublesPerAttempt(t *testing.T) {
	base := 200 * time.Millisecond
	cap := 5 * time.Second

	assert.Equal(t, 200*time.Millisecond, backoffDelay(base, cap, 0))
	assert.Equal(t, 400*time.Millisecond, backoffDelay(base, cap, 1))
	assert.Equal(t, 800*time.Millisecond, backoffDelay(base, cap, 2))
}

func TestBackoffDelay_Capped(t *testing.T) {
	base := 1 * time.Second
	cap := 3 * time.Second

	assert.Equal(t, 3*time.Second, backoffDelay(base, cap, 5))
	assert.Equal(t, 3*time.Second, backoffDelay(base, cap, 60)) // no overflow
}

func TestBackoffDelay_ZeroBase(t *testing.T) {
	assert.Equal(t, time.Duration(0), backoffDelay(0, time.Second, 3))
}
