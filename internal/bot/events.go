package bot

// EventType tags a lifecycle/UI event emitted for one bot identity.
type EventType string

const (
	EventLogin          EventType = "login"
	EventSpawn          EventType = "spawn"
	EventHealth         EventType = "health"
	EventChat           EventType = "chat"
	EventError          EventType = "error"
	EventInventoryError EventType = "inventory-error"
	EventEnd            EventType = "end"
	EventReconnecting   EventType = "reconnecting"
	EventInfo           EventType = "info"
	EventHotbarUpdate   EventType = "hotbar-update"
	EventInventory      EventType = "inventory"
	EventChestOpen      EventType = "chest-open"
	EventChestClose     EventType = "chest-close"
	EventGoalReached    EventType = "goal_reached"
)

// Event is one identity-tagged notification for the UI sink. Message carries
// the human-readable text; Data carries structured payloads (health values,
// chat sender/message, inventory slots).
type Event struct {
	Identity string         `json:"username"`
	Type     EventType      `json:"type"`
	Message  string         `json:"message,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Sink receives every bot event. Implementations must not block: the
// lifecycle manager publishes from session callback goroutines.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Publish(ev Event) { f(ev) }

// MultiSink fans one event out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Publish(ev Event) {
	for _, s := range m {
		s.Publish(ev)
	}
}
