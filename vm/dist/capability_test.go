package dist

import "testing"

func TestPermissivePolicy_AllowsEverything(t *testing.T) {
	p := NewPermissivePolicy()
	b := &Bundle{Builtins: []string{"putd", "puts", "alloc", "write"}}

	if err := p.Check(b); err != nil {
		t.Errorf("permissive policy should allow all: %v", err)
	}
}

func TestPermissivePolicy_NilBundle(t *testing.T) {
	p := NewPermissivePolicy()
	if err := p.Check(nil); err != nil {
		t.Errorf("nil bundle should be allowed: %v", err)
	}
}

func TestRestrictedPolicy(t *testing.T) {
	p := NewRestrictedPolicy([]string{"putd", "puts"})

	if err := p.Check(&Bundle{Builtins: []string{"putd"}}); err != nil {
		t.Errorf("should allow listed built-in: %v", err)
	}
	if err := p.Check(&Bundle{Builtins: []string{"putd", "write"}}); err == nil {
		t.Error("should deny unlisted built-in")
	}
}

func TestPolicy_Deny(t *testing.T) {
	p := NewPermissivePolicy()
	p.Deny("alloc")

	if err := p.Check(&Bundle{Builtins: []string{"alloc"}}); err == nil {
		t.Error("should deny explicitly denied built-in")
	}
	if err := p.Check(&Bundle{Builtins: []string{"putd"}}); err != nil {
		t.Errorf("should allow other built-ins: %v", err)
	}
}
