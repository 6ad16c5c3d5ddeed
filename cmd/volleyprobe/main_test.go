package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/volleyball/internal/protocol"
)

func TestParseScript(t *testing.T) {
	steps, err := parseScript("left, jump,,right")
	require.NoError(t, err)
	assert.Equal(t, []step{
		{protocol.KeyLeft, true},
		{protocol.KeyLeft, false},
		{protocol.KeyJump, true},
		{protocol.KeyRight, true},
		{protocol.KeyRight, false},
	}, steps)
}

func TestParseScript_UnknownStep(t *testing.T) {
	_, err := parseScript("left,dive")
	assert.ErrorContains(t, err, "dive")
}
