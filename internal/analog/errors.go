package analog

import "github.com/pkg/errors"

// Sentinel errors. Contract violations are raised as panics wrapping these
// values, recoverable errors are returned wrapping them; match with errors.Is.
var (
	// ErrNoSavedState is raised when Backward runs without a matching Forward.
	ErrNoSavedState = errors.New("analog: backward called without saved state from a matching forward")

	// ErrSavedStateReused is raised when the same saved state is passed to Backward twice.
	ErrSavedStateReused = errors.New("analog: saved state already consumed by a previous backward")

	// ErrSharedWeightsMismatch is raised when direct mode has missing or incompatible shared weights.
	ErrSharedWeightsMismatch = errors.New("analog: shared weights missing or incompatible with the analog weights")

	// ErrUnbound is raised when a context or tile is missing.
	ErrUnbound = errors.New("analog: context is not bound to a tile")

	// ErrUnsupportedMove is returned for device or dtype transitions the backend disallows.
	ErrUnsupportedMove = errors.New("analog: unsupported device move")

	// ErrNoAccelerator is returned by tiles when the requested accelerator is not available.
	ErrNoAccelerator = errors.New("analog: accelerator not available")
)
