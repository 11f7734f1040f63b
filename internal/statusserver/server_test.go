package statusserver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_SetAdvanceFail(t *testing.T) {
	s := &Status{}
	s.Set("rp2040", 1000)
	s.Advance(250)

	snap := s.snapshot()
	assert.Equal(t, "rp2040", snap.Board)
	assert.Equal(t, 1000, snap.TotalBytes)
	assert.Equal(t, 250, snap.DoneBytes)
	assert.Equal(t, "flashing", snap.State)

	s.Fail(errors.New("device disconnected"))
	snap = s.snapshot()
	assert.Equal(t, "error", snap.State)
	assert.Equal(t, "device disconnected", snap.Error)
}
