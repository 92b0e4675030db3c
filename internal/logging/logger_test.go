package logging

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func resetLogger() {
	logger = nil
	once = sync.Once{}
}

func TestGetLogger_FallbackBeforeInit(t *testing.T) {
	resetLogger()
	l := GetLogger()
	assert.NotNil(t, l)
}

func TestGetLogger_SingletonAfterInit(t *testing.T) {
	resetLogger()
	require := assert.New(t)
	require.NoError(Initialize(true))

	l1 := GetLogger()
	l2 := GetLogger()
	assert.Same(t, l1, l2)
}

func TestInitialize_OnlyFirstCallWins(t *testing.T) {
	resetLogger()
	assert.NoError(t, Initialize(true))
	l1 := GetLogger()
	assert.NoError(t, Initialize(false))
	l2 := GetLogger()
	assert.Same(t, l1, l2)
}
