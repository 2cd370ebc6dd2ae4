package services

import "sync"

// ModelHolder owns the process-wide "current model" setting. Intake reads the
// value once at the start of each submission; an operator switch lands on the
// next submission, not mid-flight.
type ModelHolder struct {
	mu           sync.RWMutex
	name         string
	defaultModel string
}

func NewModelHolder(defaultModel string) *ModelHolder {
	return &ModelHolder{name: defaultModel, defaultModel: defaultModel}
}

func (h *ModelHolder) Get() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.name
}

// Set switches the active model. An empty name restores the default.
func (h *ModelHolder) Set(name string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if name == "" {
		name = h.defaultModel
	}
	h.name = name
	return h.name
}

func (h *ModelHolder) Default() string {
	return h.defaultModel
}
