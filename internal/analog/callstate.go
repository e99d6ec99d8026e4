package analog

// CallState is the scratch space shared by a tile's forward and backward
// routines for one call. Tiles use it to keep whatever their backward needs
// (for example the input shape on the indexed path).
type CallState struct {
	values map[string]any
}

// NewCallState returns an empty call state. The dispatcher creates one per
// Forward; tiles and their tests may create their own.
func NewCallState() *CallState {
	return &CallState{}
}

// Stash stores v under key.
func (s *CallState) Stash(key string, v any) {
	if s.values == nil {
		s.values = make(map[string]any)
	}
	s.values[key] = v
}

// Stashed returns the value stored under key.
func (s *CallState) Stashed(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *CallState) clear() {
	s.values = nil
}
