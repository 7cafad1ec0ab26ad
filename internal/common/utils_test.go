package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasAny(t *testing.T) {
	assert.True(t, HasAny("light rain", "snow", "rain"))
	assert.False(t, HasAny("clear sky", "rain", "snow"))
	assert.False(t, HasAny("clear sky"))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "CA", FirstNonEmpty("", "  ", "CA", "US"))
	assert.Equal(t, "", FirstNonEmpty("", " "))
}
