package component

// State is the lifecycle state of a Component.
//
// A component starts out Stopped and moves through the transient states
// (Starting, Stopping, Pausing, Resuming, ShuttingDown) while a transition
// is in flight. Shutdown is terminal: once reached, no further transition
// succeeds.
type State int

const (
	// Stopped means the component has either been stopped or has yet to
	// be started.
	Stopped State = iota
	// Starting means the start hook has been called but has not returned.
	Starting
	// Started means the component is running and its update timer is active.
	Started
	// Stopping means the stop hook has been called but has not returned.
	Stopping
	// Pausing means the component is transitioning to Paused.
	Pausing
	// Paused means the update timer is stopped but the component is
	// otherwise considered running.
	Paused
	// Resuming means the component is transitioning from Paused to Started.
	Resuming
	// ShuttingDown means the shutdown hook has been called but has not
	// returned.
	ShuttingDown
	// Shutdown is terminal. The component cannot transition anymore.
	Shutdown
)

var stateNames = map[State]string{
	Stopped:      "Stopped",
	Starting:     "Starting",
	Started:      "Started",
	Stopping:     "Stopping",
	Pausing:      "Pausing",
	Paused:       "Paused",
	Resuming:     "Resuming",
	ShuttingDown: "ShuttingDown",
	Shutdown:     "Shutdown",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}
