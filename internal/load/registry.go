package load

import (
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/creature-etl/internal/core"
)

// WriteOptions are passed to every sink writer.
type WriteOptions struct {
	Timestamped bool
	Sheet       string
}

// WriteFunc writes recs to path and returns the path actually written.
type WriteFunc func(l *Loader, recs []core.Creature, path string, opts WriteOptions) (string, error)

// Sink is a named file format.
type Sink struct {
	Name  string
	Ext   string
	Write WriteFunc
}

var (
	registry   = make(map[string]Sink)
	registryMu sync.RWMutex
)

func init() {
	Register(Sink{Name: "csv", Ext: ".csv", Write: func(l *Loader, recs []core.Creature, path string, o WriteOptions) (string, error) {
		return l.WriteCSV(recs, path, o.Timestamped)
	}})
	Register(Sink{Name: "json", Ext: ".json", Write: func(l *Loader, recs []core.Creature, path string, o WriteOptions) (string, error) {
		return l.WriteJSON(recs, path, o.Timestamped)
	}})
	Register(Sink{Name: "xlsx", Ext: ".xlsx", Write: func(l *Loader, recs []core.Creature, path string, o WriteOptions) (string, error) {
		return l.WriteSpreadsheet(recs, path, o.Timestamped, o.Sheet)
	}})
}

// Register adds a sink to the registry.
// Panics if a sink with the same name is already registered.
func Register(s Sink) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[s.Name]; exists {
		panic(fmt.Sprintf("sink already registered: %s", s.Name))
	}
	registry[s.Name] = s
}

// Get returns a sink by name.
func Get(name string) (Sink, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	s, ok := registry[name]
	return s, ok
}

// Lookup returns a sink by name or a core.ErrUnknownSink error.
func Lookup(name string) (Sink, error) {
	s, ok := Get(name)
	if !ok {
		return Sink{}, fmt.Errorf("%w: %s", core.ErrUnknownSink, name)
	}
	return s, nil
}

// Names returns the registered sink names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
