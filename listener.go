package raop

import "sync/atomic"

// ListenerHandle lets a caller register a Listener with the engine without
// the engine extending that listener's lifetime. Go has no first-class
// weak reference usable across the language versions this module targets,
// so the caller is instead given a handle it can invalidate: the caller
// keeps the handle, calling Invalidate drops the engine's reference, and
// the engine treats an invalidated (or never-set) handle as "no listener",
// silently skipping the notification.
type ListenerHandle struct {
	ptr atomic.Pointer[Listener]
}

// NewListenerHandle wraps l in a handle the engine can be given.
func NewListenerHandle(l Listener) *ListenerHandle {
	h := &ListenerHandle{}
	h.ptr.Store(&l)
	return h
}

// Invalidate drops the held listener. Safe to call more than once.
func (h *ListenerHandle) Invalidate() {
	if h == nil {
		return
	}
	h.ptr.Store(nil)
}

// get returns the live listener, or nil if the handle is nil or invalidated.
func (h *ListenerHandle) get() Listener {
	if h == nil {
		return nil
	}
	p := h.ptr.Load()
	if p == nil {
		return nil
	}
	return *p
}
