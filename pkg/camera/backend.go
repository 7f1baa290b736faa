package camera

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

const DefaultBackend = "mediadevices"

// Options carries what a backend constructor may need.
type Options struct {
	Logger *zap.SugaredLogger
	// Synthetic lists the fake devices of the synthetic backend.
	Synthetic []SyntheticDevice
	// Probe is how many indices the gocv backend tries when scanning.
	Probe int
}

type Factory func(opts Options) (Backend, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register makes a backend constructor available to New. Platform files
// call it from init.
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Available lists the backends compiled into this binary.
func Available() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the named backend.
func New(name string, opts Options) (Backend, error) {
	if name == "" {
		name = DefaultBackend
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}

	factoriesMu.RLock()
	f, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q is not built into this binary (have %v)", ErrBackendUnavailable, name, Available())
	}

	b, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, name, err)
	}
	return b, nil
}
