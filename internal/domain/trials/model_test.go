package trials

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpired(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, Trial{Status: StatusActive, EndDate: now.Add(-time.Second)}.Expired(now))
	assert.False(t, Trial{Status: StatusActive, EndDate: now}.Expired(now))
	assert.False(t, Trial{Status: StatusConverted, EndDate: now.Add(-time.Hour)}.Expired(now))
}
