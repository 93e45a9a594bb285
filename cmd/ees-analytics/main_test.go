package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRootCmd_Builds(t *testing.T) {
	assert.NotPanics(t, func() {
		cmd := newRootCmd()
		assert.Equal(t, "ees-analytics", cmd.Name())
	})
}
