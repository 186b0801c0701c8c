package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapError(t *testing.T) {
	cause := errors.New("disk on fire")
	err := WrapError("superblock read failed", cause)
	require.Error(t, err)
	assert.Equal(t, "superblock read failed: disk on fire", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestWrapErrorNil(t *testing.T) {
	assert.NoError(t, WrapError("context", nil))
}

func TestKindfClassification(t *testing.T) {
	err := Kindf(ErrTruncated, "eof %d < stored eoa %d", 10, 20)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTruncated)
	assert.NotErrorIs(t, err, ErrIO)
	assert.Contains(t, err.Error(), "eof 10 < stored eoa 20")
}

func TestKindfSurvivesWrapping(t *testing.T) {
	err := WrapError("outer context", Kindf(ErrNotHDF5, "no signature"))
	assert.ErrorIs(t, err, ErrNotHDF5)
}
