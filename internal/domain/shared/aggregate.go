package shared

import (
	"sync"

	"github.com/google/uuid"
)

// AggregateRoot is the base interface for all aggregate roots
type AggregateRoot interface {
	Entity
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot provides common fields for aggregate roots.
// Event recording is guarded so a run may be observed while it executes.
type BaseAggregateRoot struct {
	BaseEntity

	mu           sync.Mutex
	domainEvents []DomainEvent
}

// AddDomainEvent adds a domain event to be published
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns a copy of all pending domain events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	events := make([]DomainEvent, len(a.domainEvents))
	copy(events, a.domainEvents)
	return events
}

// ClearDomainEvents clears the pending domain events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.domainEvents = nil
}

// NewBaseAggregateRoot creates a new base aggregate root
func NewBaseAggregateRoot(id uuid.UUID) BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity:   NewBaseEntity(id),
		domainEvents: make([]DomainEvent, 0),
	}
}
