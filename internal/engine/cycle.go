package engine

import "sync"

// CycleDetector remembers which trees a session has already derived.
//
// Rules routinely rewrite a tree back into a shape seen earlier: JoinSort
// and ServerJoin both start from the same join, InnerSortRemove can undo a
// sort another rule kept. Without the detector such pairs would feed each
// other forever. Trees are identified by rel.Fingerprint.
//
// Cycle detection and the step quota are both required:
//   - Cycle detection: stops rewrites that revisit a tree (A → B → A)
//   - Step quota: stops long chains of distinct trees (A → B → ... → Z)
type CycleDetector struct {
	mu      sync.Mutex
	history map[string]map[string]bool // map[session_id]map[fingerprint]bool
}

// NewCycleDetector creates a new cycle detector.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{
		history: make(map[string]map[string]bool),
	}
}

// WouldCycle reports whether the session has already derived a tree with
// this fingerprint.
//
// Thread-safe: Can be called concurrently.
func (c *CycleDetector) WouldCycle(sessionID, fingerprint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.history[sessionID][fingerprint]
}

// Record marks a fingerprint as derived in the session.
//
// Thread-safe: Can be called concurrently.
func (c *CycleDetector) Record(sessionID, fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.history[sessionID] == nil {
		c.history[sessionID] = make(map[string]bool)
	}
	c.history[sessionID][fingerprint] = true
}

// Clear removes all history for a session.
//
// Thread-safe: Can be called concurrently.
func (c *CycleDetector) Clear(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.history, sessionID)
}

// HistorySize returns the number of sessions with tracked history.
func (c *CycleDetector) HistorySize() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.history)
}

// SessionHistorySize returns the number of fingerprints tracked for a
// session.
func (c *CycleDetector) SessionHistorySize(sessionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.history[sessionID])
}
