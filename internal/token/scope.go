package token

import "fmt"

// Scope is the set of operations a card-access credential authorizes.
type Scope string

const (
	ScopeReadOnly    Scope = "read-only"
	ScopeFullAccess  Scope = "full-access"
	ScopeRefreshOnly Scope = "refresh-only"
)

// ParseScope converts a string into a known Scope
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeReadOnly, ScopeFullAccess, ScopeRefreshOnly:
		return Scope(s), nil
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

// Valid reports whether the scope is one of the known values
func (s Scope) Valid() bool {
	_, err := ParseScope(string(s))
	return err == nil
}

// Satisfies reports whether a credential holding scope s authorizes an
// operation that requires the given scope. Full access satisfies any
// requirement; read-only and refresh-only satisfy only themselves.
func (s Scope) Satisfies(required Scope) bool {
	if s == ScopeFullAccess {
		return true
	}
	return s == required
}
