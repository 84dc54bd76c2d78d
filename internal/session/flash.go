package session

import (
	"fmt"
	"net/http"
)

// Message is one flash message waiting to be shown on the next rendered page.
type Message struct {
	Category string
	Text     string
}

func (m *Manager) Flash(w http.ResponseWriter, r *http.Request, category, text string) error {
	s := m.get(r)
	s.AddFlash(Message{Category: category, Text: text})
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("error saving flash: %w", err)
	}
	return nil
}

// Flashes pops every pending message.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) []Message {
	s := m.get(r)
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil
	}
	out := make([]Message, 0, len(raw))
	for _, v := range raw {
		if msg, ok := v.(Message); ok {
			out = append(out, msg)
		}
	}
	// nothing useful to do if the cookie cannot be rewritten; messages show again
	_ = s.Save(r, w)
	return out
}
