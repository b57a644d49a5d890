package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	LicenseCreated  EventType = "LICENSE_CREATED"
	LicenseExpired  EventType = "LICENSE_EXPIRED"
	DomainActivated EventType = "DOMAIN_ACTIVATED"
	CreditsLow      EventType = "CREDITS_LOW"
	CreditsDepleted EventType = "CREDITS_DEPLETED"
	CreditsReset    EventType = "CREDITS_RESET"
	ProviderFailure EventType = "PROVIDER_FAILURE"
	Error           EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// Bus manages event publishing and subscriptions
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (b *Bus) Subscribe(eventType EventType, subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (b *Bus) SubscribeAll(subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.allSubs = append(b.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := b.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	for _, sub := range b.allSubs {
		go sub(event)
	}
}

// PublishCreditsLow publishes a low balance warning for a license
func (b *Bus) PublishCreditsLow(licenseID, customerEmail string, remaining int) {
	b.Publish(Event{
		Type: CreditsLow,
		Data: map[string]interface{}{
			"license_id":     licenseID,
			"customer_email": customerEmail,
			"remaining":      remaining,
		},
	})
}

// PublishCreditsDepleted publishes a depleted balance event
func (b *Bus) PublishCreditsDepleted(licenseID, customerEmail string) {
	b.Publish(Event{
		Type: CreditsDepleted,
		Data: map[string]interface{}{
			"license_id":     licenseID,
			"customer_email": customerEmail,
		},
	})
}

// PublishError publishes an error event
func (b *Bus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	b.Publish(Event{
		Type: Error,
		Data: data,
	})
}
