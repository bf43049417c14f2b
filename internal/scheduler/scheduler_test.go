package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEverySeconds_RendersCronEverySpec(t *testing.T) {
	assert.Equal(t, "@every 30s", everySeconds(30))
}

func TestEverySeconds_ClampsNonPositiveToOneSecond(t *testing.T) {
	assert.Equal(t, "@every 1s", everySeconds(0))
	assert.Equal(t, "@every 1s", everySeconds(-5))
}
