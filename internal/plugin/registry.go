package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownPlugin is returned by Load for names nobody registered.
var ErrUnknownPlugin = errors.New("unknown plugin")

var (
	registryMu sync.RWMutex
	registry   = make(map[string]EntryPoint)
)

// Register makes an entry point available under name. Registering the same
// name twice replaces the earlier entry.
func Register(name string, entry EntryPoint) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = entry
}

// Registered returns the registered plugin names in sorted order.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registeredLocked()
}

// Load instantiates the named plugins for the given host version and returns
// them chained in order.
func Load(names []string, version string, opts Options) (Plugin, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	chain := make(Chain, 0, len(names))
	for _, name := range names {
		entry, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s (registered: %v)", ErrUnknownPlugin, name, registeredLocked())
		}
		ctor := entry(version)
		if ctor == nil {
			return nil, fmt.Errorf("plugin %s does not support host version %s", name, version)
		}
		chain = append(chain, ctor(opts))
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return chain, nil
}

func registeredLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
