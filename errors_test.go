package fsbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	assert.Nil(t, classifyError(nil))
	assert.Equal(t, ErrNotFound, classifyError(&os.PathError{Op: "open", Path: "/srv/data/a", Err: os.ErrNotExist}))
	assert.Equal(t, ErrConflict, classifyError(fmt.Errorf("wrapped: %w", os.ErrExist)))
	assert.ErrorIs(t, classifyError(ErrIsDir), ErrIsDir)

	err := classifyError(&os.PathError{Op: "write", Path: "/srv/secret/root/a.txt", Err: errors.New("no space left on device")})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.NotContains(t, err.Error(), "/srv/secret")
	assert.Contains(t, err.Error(), "no space left on device")
}

func TestKindAndRetryable(t *testing.T) {
	wrapped := &OpError{Op: "read", Address: "public://a.txt", Err: ErrNotFound}
	assert.Equal(t, ErrNotFound, Kind(wrapped))
	assert.False(t, IsRetryable(wrapped))
	assert.False(t, IsRetryable(&OpError{Op: "write", Err: ErrConflict}))
	assert.True(t, IsRetryable(&OpError{Op: "write", Err: fmt.Errorf("%w: timeout", ErrBackendUnavailable)}))
	assert.Nil(t, Kind(context.Canceled))
}

func TestOpError_Message(t *testing.T) {
	err := &OpError{Op: "delete", Address: "mem://a.txt", Err: ErrNotFound}
	assert.Equal(t, "fsbox: delete mem://a.txt: file does not exist", err.Error())
	assert.Equal(t, "fsbox: records: fsbox: already closed", (&OpError{Op: "records", Err: ErrClosed}).Error())
}
