package playback

// EventType represents a playback event type.
type EventType int

const (
	EventTrackChanged    EventType = iota // Resource repointed to another (or the same) track
	EventStateChanged                     // Play/pause flag changed
	EventProgress                         // Elapsed time changed
	EventDurationChanged                  // Duration reported by the resource
	EventHoverChanged                     // Hovered row changed
	EventLoadFailed                       // Resource failed to load the selected track
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackChanged:
		return "track_changed"
	case EventStateChanged:
		return "state_changed"
	case EventProgress:
		return "progress"
	case EventDurationChanged:
		return "duration_changed"
	case EventHoverChanged:
		return "hover_changed"
	case EventLoadFailed:
		return "load_failed"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type     EventType
	Snapshot Snapshot // State right after the change
	Err      error    // Set for EventLoadFailed
}
