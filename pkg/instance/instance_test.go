package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDPrefersEnvironment(t *testing.T) {
	t.Setenv(EnvInstanceID, "cron-worker-7")
	assert.Equal(t, "cron-worker-7", ID())
}

func TestIDFallsBack(t *testing.T) {
	t.Setenv(EnvInstanceID, "")
	assert.NotEmpty(t, ID())
}
