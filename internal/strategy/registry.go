package strategy

import (
	"fmt"
	"sort"
	"strings"

	boterrors "github.com/earthskyorg/bybit-trading-bot/internal/errors"
)

// Factory builds a strategy with its default parameters.
type Factory func() Strategy

// registry maps strategy names to factories. Populated from init functions
// only; read-only once the process is past startup.
var registry = map[string]Factory{}

// Register adds a strategy factory under name. Meant to be called from
// init functions; registering the same name twice is a programming error.
func Register(name string, factory Factory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("strategy %q registered twice", name))
	}
	registry[name] = factory
}

// Names returns the registered strategy names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New resolves name to a validated strategy instance.
func New(name string) (Strategy, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, boterrors.NewConfigurationError("strategy", "resolve",
			fmt.Sprintf("unknown strategy %q, available: %s", name, strings.Join(Names(), ", ")))
	}

	s := factory()
	if err := s.ValidateParameters(); err != nil {
		return nil, err
	}
	return s, nil
}
