package session

import (
	"sync"

	"rerolab/models"
	"rerolab/utils"
)

// Holder is the single place the current session lives. Readers get a copy.
type Holder struct {
	mu      sync.RWMutex
	current models.Session
	clock   utils.Clock
}

func NewHolder(clock utils.Clock) *Holder {
	if clock == nil {
		clock = utils.RealClock()
	}
	return &Holder{clock: clock}
}

// Current returns the session if one is set and not expired.
func (h *Holder) Current() (models.Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.current.Valid(h.clock.Now()) {
		return models.Session{}, false
	}
	return h.current, true
}

func (h *Holder) Set(s models.Session) {
	h.mu.Lock()
	h.current = s
	h.mu.Unlock()
}

func (h *Holder) Clear() {
	h.mu.Lock()
	h.current = models.Session{}
	h.mu.Unlock()
}

