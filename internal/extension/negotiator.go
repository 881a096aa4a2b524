// Package extension decides which runtime extensions an instance is created
// with.
package extension

import (
	"fmt"
	"slices"

	"github.com/gobwas/glob"

	xrerrors "github.com/Iron-Ham/xrloop/internal/errors"
	"github.com/Iron-Ham/xrloop/internal/logging"
	"github.com/Iron-Ham/xrloop/internal/xr"
)

// Set is the ordered list of extensions to enable. The required extension
// is always first.
type Set struct {
	names []string
}

// NewSet builds a Set from names, dropping duplicates.
func NewSet(names ...string) Set {
	var s Set
	for _, n := range names {
		if !s.Has(n) {
			s.names = append(s.names, n)
		}
	}
	return s
}

// Names returns the extension names in enable order.
func (s Set) Names() []string {
	return slices.Clone(s.names)
}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	return slices.Contains(s.names, name)
}

// Len returns the number of extensions.
func (s Set) Len() int { return len(s.names) }

// Negotiator matches the runtime's advertised extensions against the
// required capability and the optional patterns. It holds no state between
// calls, so every instance rebuild re-enumerates.
type Negotiator struct {
	rt       xr.Runtime
	required string
	patterns []string
	optional []glob.Glob
	logger   *logging.Logger
}

// NewNegotiator compiles the optional patterns. A pattern that does not
// compile is a configuration error.
func NewNegotiator(rt xr.Runtime, required string, optional []string, logger *logging.Logger) (*Negotiator, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	n := &Negotiator{
		rt:       rt,
		required: required,
		patterns: slices.Clone(optional),
		logger:   logger.WithPhase("negotiate"),
	}
	for _, p := range optional {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, xrerrors.NewValidationError(fmt.Sprintf("invalid extension pattern: %v", err)).
				WithField("runtime.optional_extensions").
				WithValue(p)
		}
		n.optional = append(n.optional, g)
	}
	return n, nil
}

// Required returns the extension that must be advertised.
func (n *Negotiator) Required() string { return n.required }

// Advertised returns every extension the runtime reports.
func (n *Negotiator) Advertised() ([]xr.ExtensionProperties, error) {
	props, res := n.rt.EnumerateInstanceExtensionProperties()
	if err := res.Err("xrEnumerateInstanceExtensionProperties"); err != nil {
		return nil, err
	}
	return props, nil
}

// Negotiate enumerates the runtime's extensions and returns the set to
// enable. A missing required extension yields a setup error wrapping
// ErrMissingCapability; retrying will not help.
func (n *Negotiator) Negotiate() (Set, error) {
	props, err := n.Advertised()
	if err != nil {
		return Set{}, err
	}

	found := false
	for _, p := range props {
		if p.Name == n.required {
			found = true
			break
		}
	}
	if !found {
		n.logger.Error("required extension not advertised",
			"extension", n.required,
			"advertised", len(props))
		return Set{}, xrerrors.NewSetupError(
			fmt.Sprintf("runtime does not support %s", n.required),
			xrerrors.ErrMissingCapability,
		).WithComponent("extension")
	}

	set := NewSet(n.required)
	for _, p := range props {
		if n.matchesOptional(p.Name) && !set.Has(p.Name) {
			set.names = append(set.names, p.Name)
		}
	}

	n.logger.Debug("extensions negotiated",
		"enabled", set.Names(),
		"advertised", len(props),
		"patterns", n.patterns)
	return set, nil
}

func (n *Negotiator) matchesOptional(name string) bool {
	for _, g := range n.optional {
		if g.Match(name) {
			return true
		}
	}
	return false
}
