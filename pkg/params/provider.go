package params

import (
	"github.com/algorand/go-deadlock"
)

// Provider is the source of parameter values. Implementations return the
// parameter's default when they have no value and never return a value
// outside the parameter's bounds.
type Provider interface {
	Get(p Param) int32
}

// Static serves defaults, optionally replaced by fixed overrides
type Static struct {
	overrides map[string]int32
}

// NewStatic builds a provider from overrides keyed by parameter name. A nil
// map serves pure defaults.
func NewStatic(overrides map[string]int32) *Static {
	cp := make(map[string]int32, len(overrides))
	for k, v := range overrides {
		cp[k] = v
	}
	return &Static{overrides: cp}
}

func (s *Static) Get(p Param) int32 {
	if v, ok := s.overrides[p.Name]; ok {
		return p.Clamp(v)
	}
	return p.Default
}

// Network holds parameters distributed in the network consensus. Values are
// replaced wholesale on every Update; missing names fall back to a base
// provider.
type Network struct {
	mu     deadlock.RWMutex
	values map[string]int32
	base   Provider
}

// NewNetwork creates an empty network provider. A nil base falls back to
// parameter defaults.
func NewNetwork(base Provider) *Network {
	if base == nil {
		base = NewStatic(nil)
	}
	return &Network{
		values: map[string]int32{},
		base:   base,
	}
}

// Update installs a new set of distributed values
func (n *Network) Update(values map[string]int32) {
	cp := make(map[string]int32, len(values))
	for k, v := range values {
		cp[k] = v
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.values = cp
}

func (n *Network) Get(p Param) int32 {
	n.mu.RLock()
	v, ok := n.values[p.Name]
	n.mu.RUnlock()

	if ok {
		return p.Clamp(v)
	}
	return n.base.Get(p)
}
