package raop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingListener struct {
	playing int
	stopped int
}

func (r *recordingListener) Playing(PlaybackInfo) { r.playing++ }
func (r *recordingListener) Stopped()             { r.stopped++ }

func TestListenerHandleDeliversToLiveListener(t *testing.T) {
	l := &recordingListener{}
	h := NewListenerHandle(l)

	h.get().Playing(PlaybackInfo{})
	assert.Equal(t, 1, l.playing)
}

func TestListenerHandleInvalidateDropsReference(t *testing.T) {
	l := &recordingListener{}
	h := NewListenerHandle(l)
	h.Invalidate()

	assert.Nil(t, h.get())
}

func TestNilListenerHandleIsSafe(t *testing.T) {
	var h *ListenerHandle
	assert.Nil(t, h.get())
	assert.NotPanics(t, h.Invalidate)
}
