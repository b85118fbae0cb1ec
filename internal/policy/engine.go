// Package policy answers "may this role perform this admin action" with an
// in-process OPA Rego policy.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

// Admin actions checked against the policy.
const (
	ActionUsersList     = "admin.users.list"
	ActionUsersGet      = "admin.users.get"
	ActionUsersUpdate   = "admin.users.update"
	ActionSessionsList  = "admin.sessions.list"
	ActionSessionRevoke = "admin.sessions.revoke"
	ActionAuditList     = "admin.audit.list"
)

// The root admin may do everything; admins get the read-only surface;
// everyone else is denied.
const defaultRegoPolicy = `package genesis.adminz

default allow = false

allow if {
	input.role == "root_admin"
}

read_actions := {
	"admin.users.list",
	"admin.users.get",
	"admin.sessions.list",
	"admin.audit.list",
}

allow if {
	input.role == "admin"
	read_actions[input.action]
}
`

// Engine compiles the policy once and evaluates it per request.
type Engine struct {
	compiler *ast.Compiler
}

// NewEngine compiles the built-in policy. A compile failure is a programming
// error and should abort startup.
func NewEngine() (*Engine, error) {
	compiler, err := ast.CompileModules(map[string]string{"adminz.rego": defaultRegoPolicy})
	if err != nil {
		return nil, fmt.Errorf("compile admin policy: %w", err)
	}
	return &Engine{compiler: compiler}, nil
}

// Allow reports whether the role may perform the action.
func (e *Engine) Allow(ctx context.Context, role, action string) (bool, error) {
	q := rego.New(
		rego.Query("data.genesis.adminz.allow"),
		rego.Compiler(e.compiler),
		rego.Input(map[string]interface{}{
			"role":   role,
			"action": action,
		}),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return false, fmt.Errorf("eval admin policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	return ok && allowed, nil
}

// HealthCheck verifies the engine can evaluate its policy end to end.
func (e *Engine) HealthCheck(ctx context.Context) error {
	allowed, err := e.Allow(ctx, "root_admin", ActionUsersList)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("admin policy denied the root admin baseline")
	}
	return nil
}
