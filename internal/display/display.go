// Package display holds the kiosk's four-line OLED text mirror: the
// orchestrator is the sole writer, the web surface the sole reader.
package display

import "sync"

const maxLineLen = 21 // 128px wide panel at a 6px-per-character font.

// Mirror is a mutex-guarded four-line text buffer, updated atomically by
// the orchestrator and read by the web surface's /oled.json handler.
type Mirror struct {
	mu    sync.RWMutex
	lines [4]string
}

// New returns an empty Mirror.
func New() *Mirror {
	return &Mirror{}
}

// Set atomically replaces all four lines, truncating any that exceed the
// panel's character width.
func (m *Mirror) Set(lines [4]string) {
	for i, l := range lines {
		if len(l) > maxLineLen {
			lines[i] = l[:maxLineLen]
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = lines
}

// Lines returns a snapshot of the four current lines.
func (m *Mirror) Lines() [4]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lines
}

// JSON is the {l1,l2,l3,l4} projection served at /oled.json.
type JSON struct {
	L1 string `json:"l1"`
	L2 string `json:"l2"`
	L3 string `json:"l3"`
	L4 string `json:"l4"`
}

// ToJSON renders the current lines in the shape the web surface serves.
func (m *Mirror) ToJSON() JSON {
	l := m.Lines()
	return JSON{L1: l[0], L2: l[1], L3: l[2], L4: l[3]}
}
