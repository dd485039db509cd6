// Package notify delivers alert messages to configured destinations.
// Delivery fans out to every registered destination; a failing destination
// is dropped from the registry so one dead channel cannot stall the rest.
package notify

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/marginwatch/internal/events"
)

// Notifier delivers one message to one destination
type Notifier interface {
	Send(message string) error
	Name() string
}

// Registry holds the active notification destinations
type Registry struct {
	mu        sync.Mutex
	notifiers []Notifier
	events    *events.Manager
	log       zerolog.Logger
}

// NewRegistry creates an empty notification registry
func NewRegistry(eventMgr *events.Manager, log zerolog.Logger) *Registry {
	return &Registry{
		events: eventMgr,
		log:    log.With().Str("component", "notify").Logger(),
	}
}

// Register adds a destination
func (r *Registry) Register(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifiers = append(r.notifiers, n)
	r.log.Info().Str("destination", n.Name()).Msg("Registered notification destination")
}

// Len returns the number of active destinations
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notifiers)
}

// Broadcast sends a message to every destination. Destinations that fail
// are removed and reported via a SubscriberDropped event; the remaining
// destinations still receive the message. Returns the number of successful
// deliveries.
func (r *Registry) Broadcast(message string) int {
	r.mu.Lock()
	targets := make([]Notifier, len(r.notifiers))
	copy(targets, r.notifiers)
	r.mu.Unlock()

	delivered := 0
	var failed []Notifier
	for _, n := range targets {
		if err := n.Send(message); err != nil {
			r.log.Warn().Err(err).Str("destination", n.Name()).Msg("Notification delivery failed, dropping destination")
			failed = append(failed, n)
			continue
		}
		delivered++
	}

	for _, n := range failed {
		r.drop(n)
	}

	return delivered
}

func (r *Registry) drop(target Notifier) {
	r.mu.Lock()
	for i, n := range r.notifiers {
		if n == target {
			r.notifiers = append(r.notifiers[:i], r.notifiers[i+1:]...)
			break
		}
	}
	remaining := len(r.notifiers)
	r.mu.Unlock()

	if r.events != nil {
		r.events.Emit(events.SubscriberDropped, "notify", map[string]interface{}{
			"destination": target.Name(),
			"remaining":   remaining,
		})
	}
}

// FormatAlert renders the standard margin-of-safety alert message
func FormatAlert(ticker string, price, intrinsicValue, marginOfSafety float64) string {
	return fmt.Sprintf(
		"🔔 <b>%s</b> is trading below intrinsic value\n"+
			"Price: $%.2f\n"+
			"Intrinsic value: $%.2f\n"+
			"Margin of safety: %.1f%%",
		escapeHTML(ticker), price, intrinsicValue, marginOfSafety,
	)
}
