package services

// Notifier is how the engine reports domain events outward. Delivery is
// somebody else's problem; the engine's responsibility ends at emitting
// the event with its reason text.
type Notifier interface {
	Notify(topic string, event string, payload interface{})
}

// NopNotifier satisfies Notifier when no event fan-out is wired.
type NopNotifier struct{}

func (NopNotifier) Notify(string, string, interface{}) {}
