package kernel

import (
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// capabilityPolicy is an optional, in-memory casbin enforcer gating which
// plugin may invoke which capability on which event. It sits alongside
// ProtectedKeyPolicy (which only governs ScopedStore writes): this governs
// Emit/Call/SpawnTask instead. Grounded on the teacher's
// auth/rbac.RBACManager, reduced from its (subject, domain, object, action)
// multi-tenant RBAC model to a (plugin, event, action) model and
// stripped of its ent-backed adapter and Redis-style cache layer — this
// kernel's policy is in-memory only, matching the no-persistence decision
// recorded for entgo.io/ent.
type capabilityPolicy struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
}

const policyModelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (p.sub == "*" || p.sub == r.sub) && (p.obj == "*" || p.obj == r.obj) && p.act == r.act
`

// newCapabilityPolicy builds an allow-list enforcer with no policies
// loaded: until rules are added via Allow, every check is denied, so a
// kernel that wires this in starts from "deny all" rather than "allow
// all" (spec.md S4.3's bias toward safe defaults).
func newCapabilityPolicy() (*capabilityPolicy, error) {
	m, err := model.NewModelFromString(policyModelText)
	if err != nil {
		return nil, fmt.Errorf("capability policy model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("capability policy enforcer: %w", err)
	}
	return &capabilityPolicy{enforcer: enforcer}, nil
}

// Allow grants subject (a plugin name, or "*" for every plugin) permission
// to perform act (e.g. "emit", "call", "spawn_task") on obj (an event
// name, or "*" for every event).
func (p *capabilityPolicy) Allow(subject, object, action string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.enforcer.AddPolicy(subject, object, action)
	return err
}

// Check reports whether subject may perform action on object.
func (p *capabilityPolicy) Check(subject, object, action string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ok, err := p.enforcer.Enforce(subject, object, action)
	return err == nil && ok
}
