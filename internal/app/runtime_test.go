package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefreshTestMode(t *testing.T) {
	t.Setenv(TestModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(TestModeEnv, "0")
	RefreshTestMode()
	assert.False(t, InTestMode())
}

func TestTestModeAcceptsBoolSpellings(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE"} {
		t.Setenv(TestModeEnv, v)
		RefreshTestMode()
		assert.True(t, InTestMode(), v)
	}
	t.Setenv(TestModeEnv, "yes")
	RefreshTestMode()
	assert.False(t, InTestMode())
}
