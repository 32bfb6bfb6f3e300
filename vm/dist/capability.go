package dist

import "fmt"

// BuiltinPolicy controls which built-ins a received bundle may call. A nil
// Allowed set means "allow all".
type BuiltinPolicy struct {
	Allowed map[string]bool // nil = allow all
	Denied  map[string]bool
}

// NewPermissivePolicy creates a policy that allows every built-in.
func NewPermissivePolicy() *BuiltinPolicy {
	return &BuiltinPolicy{}
}

// NewRestrictedPolicy creates a policy that only allows the named
// built-ins.
func NewRestrictedPolicy(allowed []string) *BuiltinPolicy {
	m := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		m[name] = true
	}
	return &BuiltinPolicy{Allowed: m}
}

// Check verifies that every built-in required by the bundle is allowed.
func (p *BuiltinPolicy) Check(b *Bundle) error {
	if b == nil {
		return nil
	}
	for _, name := range b.Builtins {
		if p.Denied[name] {
			return fmt.Errorf("dist: built-in %q is explicitly denied", name)
		}
		if p.Allowed != nil && !p.Allowed[name] {
			return fmt.Errorf("dist: built-in %q is not allowed", name)
		}
	}
	return nil
}

// Deny adds a built-in to the deny list.
func (p *BuiltinPolicy) Deny(name string) {
	if p.Denied == nil {
		p.Denied = make(map[string]bool)
	}
	p.Denied[name] = true
}
