package analog

// TraceState is the occupancy of a context's trace.
//
//	Idle --(deferred backward)--> Accumulating --(Reset)--> Idle
//
// Direct-mode calls never change it.
type TraceState int

// Trace states.
const (
	TraceIdle TraceState = iota
	TraceAccumulating
)

// String returns the state name.
func (s TraceState) String() string {
	switch s {
	case TraceIdle:
		return "Idle"
	case TraceAccumulating:
		return "Accumulating"
	default:
		return "Unknown"
	}
}

// UpdateMode selects how the weight update of the current call is performed.
// Forward selects it, the matching Backward consumes it.
type UpdateMode int

// Update modes.
const (
	// UpdateDeferred appends (input, error) to the trace for a later pulsed update.
	UpdateDeferred UpdateMode = iota
	// UpdateDirect computes the weight gradient immediately into a buffer shaped
	// like the shared weights and returns it to the autodiff engine.
	UpdateDirect
)

// String returns the mode name.
func (m UpdateMode) String() string {
	switch m {
	case UpdateDeferred:
		return "deferred"
	case UpdateDirect:
		return "direct"
	default:
		return "unknown"
	}
}
