// Package source defines where zone records come from.
//
// Implementations live in sub-packages and register themselves from init();
// import internal/source/all to make every implementation available.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/munichmade/hostsync/internal/hosts"
)

// ErrUnknownSource is returned by New for names nobody registered.
var ErrUnknownSource = errors.New("unknown record source")

// Source supplies the address records of a zone.
type Source interface {
	// Records returns address -> hostnames for zone along with warnings
	// about records that were skipped. Alias records are never mapped.
	Records(ctx context.Context, zone string) (*hosts.Records, []string, error)
}

// Watcher is implemented by sources that can report changes as they
// happen. Watch calls changed for every change until ctx is done.
type Watcher interface {
	Watch(ctx context.Context, changed func()) error
}

// Pinger is implemented by sources backed by a service that can be probed
// without fetching a zone.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configure a Source.
type Options struct {
	// RecordTypes lists the record types to collect, e.g. "A", "AAAA".
	RecordTypes []string

	// Settings holds source-specific values.
	Settings Settings

	Logger *slog.Logger
}

// Factory creates a Source.
type Factory func(opts Options) (Source, error)

var (
	mu        sync.Mutex
	factories = make(map[string]Factory)
)

// Register makes a source available under name. It panics on duplicates.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("source: %q already registered", name))
	}
	factories[name] = f
}

// Names returns the registered source names, sorted.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New creates the source registered under name.
func New(name string, opts Options) (Source, error) {
	mu.Lock()
	f, ok := factories[name]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownSource, name, Names())
	}

	if len(opts.RecordTypes) == 0 {
		opts.RecordTypes = []string{"A"}
	}
	if opts.Settings == nil {
		opts.Settings = Settings{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return f(opts)
}

// Settings are string key/value pairs read from the config file.
type Settings map[string]string

// String returns the value of key or def when unset.
func (s Settings) String(key, def string) string {
	if v, ok := s[key]; ok && v != "" {
		return v
	}
	return def
}

// Duration parses the value of key as a time.Duration.
func (s Settings) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := s[key]
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("setting %s: %w", key, err)
	}
	return d, nil
}

// Float parses the value of key as a float64.
func (s Settings) Float(key string, def float64) (float64, error) {
	v, ok := s[key]
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("setting %s: %w", key, err)
	}
	return f, nil
}
