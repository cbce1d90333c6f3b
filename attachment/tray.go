package attachment

import (
	"sync"

	internalErrors "github.com/jrsteele09/go-agent-chat/internal/errors"
)

// Tray holds the attachments picked for the next message. Files can be
// removed until the message is sent.
type Tray struct {
	mu    sync.Mutex
	items []Attachment
}

func (t *Tray) Add(a Attachment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, a)
}

// Remove drops the attachment with id.
func (t *Tray) Remove(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, a := range t.items {
		if a.ID == id {
			t.items = append(t.items[:i], t.items[i+1:]...)
			return nil
		}
	}
	return internalErrors.ErrNotFound
}

func (t *Tray) List() []Attachment {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Attachment(nil), t.items...)
}

// Take empties the tray and returns what it held.
func (t *Tray) Take() []Attachment {
	t.mu.Lock()
	defer t.mu.Unlock()
	items := t.items
	t.items = nil
	return items
}

func (t *Tray) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = nil
}
