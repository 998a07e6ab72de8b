package subscribers

import (
	"sync"

	"github.com/vulntor/console/pkg/output"
)

// Buffer keeps every event in memory. Plugins use it to capture what a
// session printed; tests use it to assert on output.
type Buffer struct {
	mu     sync.Mutex
	name   string
	filter func(output.Event) bool
	events []output.Event
}

// NewBuffer creates a buffer accepting events that match filter; a nil
// filter accepts everything.
func NewBuffer(name string, filter func(output.Event) bool) *Buffer {
	return &Buffer{name: name, filter: filter}
}

func (b *Buffer) Name() string { return b.name }

func (b *Buffer) ShouldHandle(event output.Event) bool {
	return b.filter == nil || b.filter(event)
}

func (b *Buffer) Handle(event output.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

// Events returns a copy of the captured events.
func (b *Buffer) Events() []output.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]output.Event(nil), b.events...)
}

// Messages returns the captured messages in order.
func (b *Buffer) Messages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Message)
	}
	return out
}
