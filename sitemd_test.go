package sitemd_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fwojciec/sitemd"
	"github.com/stretchr/testify/assert"
)

func TestErrorf(t *testing.T) {
	t.Parallel()

	err := sitemd.Errorf(sitemd.ENOTFOUND, "task %q not found", "abc")

	assert.Equal(t, sitemd.ENOTFOUND, sitemd.ErrorCode(err))
	assert.Equal(t, "task \"abc\" not found", sitemd.ErrorMessage(err))
}

func TestErrorCode_WrappedError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("find task: %w", sitemd.Errorf(sitemd.ENOTREADY, "task is processing"))

	assert.Equal(t, sitemd.ENOTREADY, sitemd.ErrorCode(err))
	assert.Equal(t, "task is processing", sitemd.ErrorMessage(err))
}

func TestErrorCode_PlainError(t *testing.T) {
	t.Parallel()

	err := errors.New("boom")

	assert.Equal(t, sitemd.EINTERNAL, sitemd.ErrorCode(err))
	assert.Equal(t, "Internal error.", sitemd.ErrorMessage(err))
}

func TestErrorCode_NilError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, sitemd.ErrorCode(nil))
}

func TestErrorMessage_NilError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, sitemd.ErrorMessage(nil))
}
