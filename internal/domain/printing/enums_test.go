package printing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrientation_IsValid(t *testing.T) {
	tests := []struct {
		name        string
		orientation Orientation
		expected    bool
	}{
		{"valid PORTRAIT", OrientationPortrait, true},
		{"valid LANDSCAPE", OrientationLandscape, true},
		{"invalid empty", Orientation(""), false},
		{"invalid lowercase", Orientation("landscape"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.orientation.IsValid())
		})
	}
}

func TestParseOrientation(t *testing.T) {
	o, err := ParseOrientation("")
	require.NoError(t, err)
	assert.Equal(t, OrientationPortrait, o)

	o, err = ParseOrientation(" landscape ")
	require.NoError(t, err)
	assert.Equal(t, OrientationLandscape, o)

	_, err = ParseOrientation("sideways")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSubmissionFormat_IsValid(t *testing.T) {
	assert.True(t, SubmissionFormatJPEG.IsValid())
	assert.True(t, SubmissionFormatPNG.IsValid())
	assert.True(t, SubmissionFormatGIF.IsValid())
	assert.False(t, SubmissionFormat("application/pdf").IsValid())
}

func TestRunState_IsTerminal(t *testing.T) {
	assert.False(t, RunStateResolving.IsTerminal())
	assert.False(t, RunStateConverting.IsTerminal())
	assert.False(t, RunStateSubmitting.IsTerminal())
	assert.True(t, RunStateCompleted.IsTerminal())
	assert.True(t, RunStateFailed.IsTerminal())
}

func TestRunState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from     RunState
		to       RunState
		expected bool
	}{
		{RunStateResolving, RunStateConverting, true},
		{RunStateResolving, RunStateFailed, true},
		{RunStateResolving, RunStateSubmitting, false},
		{RunStateResolving, RunStateCompleted, false},
		{RunStateConverting, RunStateSubmitting, true},
		{RunStateConverting, RunStateCompleted, true},
		{RunStateConverting, RunStateFailed, true},
		{RunStateConverting, RunStateResolving, false},
		{RunStateSubmitting, RunStateConverting, true},
		{RunStateSubmitting, RunStateCompleted, true},
		{RunStateSubmitting, RunStateFailed, true},
		{RunStateCompleted, RunStateFailed, false},
		{RunStateFailed, RunStateConverting, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.from.CanTransitionTo(tt.to))
		})
	}
}
