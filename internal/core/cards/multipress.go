package cards

import "time"

// MultiPressWindow is how long the centre button waits for a follow-up press.
const MultiPressWindow = 500 * time.Millisecond

// multiPress counts centre-button presses that land within the window of
// each other. A sequence is resolved once the window has passed without
// another press.
type multiPress struct {
	count int
	last  time.Time
}

// press records a press at now. If it starts a new sequence, the count of
// the previous, not yet resolved sequence is returned.
func (m *multiPress) press(now time.Time) (prev int) {
	if m.count > 0 && now.Sub(m.last) <= MultiPressWindow {
		m.count++
	} else {
		prev = m.count
		m.count = 1
	}
	m.last = now
	return prev
}

// resolve returns the finished sequence's count once the window has closed.
func (m *multiPress) resolve(now time.Time) int {
	if m.count == 0 || now.Sub(m.last) <= MultiPressWindow {
		return 0
	}
	n := m.count
	m.count = 0
	return n
}
