// Package memory records published events in-memory for development and
// tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/alnheet/SaGovLaws/internal/gazette"
)

// Publisher stores published events for inspection.
type Publisher struct {
	mu     sync.RWMutex
	events []gazette.ArticleEvent
}

// New returns an empty memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event and returns a pseudo message id.
func (p *Publisher) Publish(_ context.Context, event gazette.ArticleEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return fmt.Sprintf("memory-%d", len(p.events)), nil
}

// Close is a no-op.
func (p *Publisher) Close() error { return nil }

// Events returns the recorded publishes.
func (p *Publisher) Events() []gazette.ArticleEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]gazette.ArticleEvent, len(p.events))
	copy(out, p.events)
	return out
}
