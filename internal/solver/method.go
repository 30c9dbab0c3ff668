package solver

import (
	"fmt"
	"strings"
)

// Method identifies a solver variant. The zero value is invalid.
type Method int

// Solver variants.
const (
	Jacobi Method = iota + 1
	GaussSeidel
	ConjugateGradient
	Neumann
	ForwardPush
	BackwardPush
	Hybrid
)

var methodNames = map[Method]string{
	Jacobi:            "jacobi",
	GaussSeidel:       "gauss-seidel",
	ConjugateGradient: "conjugate-gradient",
	Neumann:           "neumann",
	ForwardPush:       "forward-push",
	BackwardPush:      "backward-push",
	Hybrid:            "hybrid",
}

var methodAliases = map[string]Method{
	"gs": GaussSeidel,
	"cg": ConjugateGradient,
}

// String returns the canonical lower-case name of the method.
func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// Valid reports whether m is one of the defined methods.
func (m Method) Valid() bool {
	_, ok := methodNames[m]
	return ok
}

// IsPush reports whether the method works on the graph view by push
// operations and therefore requires strict row dominance.
func (m Method) IsPush() bool { return m == ForwardPush || m == BackwardPush }

// ParseMethod maps a name (canonical or the short aliases "gs" and "cg")
// to a Method. Matching is case-insensitive.
func ParseMethod(name string) (Method, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for m, n := range methodNames {
		if n == key {
			return m, nil
		}
	}
	if m, ok := methodAliases[key]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("unknown method %q (available: %s)", name, strings.Join(MethodNames(), ", "))
}

// Methods returns every method in declaration order.
func Methods() []Method {
	return []Method{Jacobi, GaussSeidel, ConjugateGradient, Neumann, ForwardPush, BackwardPush, Hybrid}
}

// MethodNames returns the canonical names in declaration order.
func MethodNames() []string {
	ms := Methods()
	names := make([]string, len(ms))
	for i, m := range ms {
		names[i] = m.String()
	}
	return names
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
