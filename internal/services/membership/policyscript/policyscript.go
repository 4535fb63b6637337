// Package policyscript runs an operator-supplied Lua access policy.
//
// The script defines a global function:
//
//	function can_access(req)
//	  -- req.user_id, req.content_id, req.level_id, req.status,
//	  -- req.access_level, req.allowed, req.reason
//	  return req.allowed, req.reason
//	end
//
// It sees the built-in decision and may override it. One Lua state is shared
// by all callers, so calls are serialized.
package policyscript

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Shopify/go-lua"
)

const entrypoint = "can_access"

// Reason codes used when the script overrides without naming a reason.
const (
	ReasonPolicyAllow = "ALLOW_POLICY"
	ReasonPolicyDeny  = "DENY_POLICY"
)

// Request is the view of one access evaluation passed to the script.
type Request struct {
	UserID      string
	ContentID   string
	LevelID     string
	Status      string
	AccessLevel int
	Allowed     bool
	Reason      string
}

// Result is the script's decision.
type Result struct {
	Allowed bool
	Reason  string
}

// Engine holds a loaded policy script.
type Engine struct {
	mu    sync.Mutex
	state *lua.State
	name  string
}

// Load reads and runs the policy script at path.
func Load(path string) (*Engine, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("policy script path is required")
	}
	state := lua.NewState()
	lua.OpenLibraries(state)
	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load policy script: %w", err)
	}
	return start(state, path)
}

// LoadString runs a policy script held in memory.
func LoadString(name, source string) (*Engine, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)
	if err := lua.LoadBuffer(state, source, name, ""); err != nil {
		return nil, fmt.Errorf("load policy script: %w", err)
	}
	return start(state, name)
}

func start(state *lua.State, name string) (*Engine, error) {
	if err := state.ProtectedCall(0, 0, 0); err != nil {
		return nil, fmt.Errorf("run policy script: %w", err)
	}
	state.Global(entrypoint)
	defined := state.IsFunction(-1)
	state.Pop(1)
	if !defined {
		return nil, fmt.Errorf("policy script %s must define %s(req)", name, entrypoint)
	}
	return &Engine{state: state, name: name}, nil
}

// Name identifies the loaded script in logs.
func (e *Engine) Name() string {
	if e == nil {
		return ""
	}
	return e.name
}

// Decide calls can_access with req. A nil or false first return denies; a
// missing reason is filled in from the outcome.
func (e *Engine) Decide(req Request) (Result, error) {
	if e == nil || e.state == nil {
		return Result{Allowed: req.Allowed, Reason: req.Reason}, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.state
	top := state.Top()
	defer state.SetTop(top)

	state.Global(entrypoint)
	if !state.IsFunction(-1) {
		return Result{}, fmt.Errorf("%s is no longer a function", entrypoint)
	}
	pushRequest(state, req)
	if err := state.ProtectedCall(1, 2, 0); err != nil {
		return Result{}, fmt.Errorf("call %s: %w", entrypoint, err)
	}

	result := Result{Allowed: state.ToBoolean(-2)}
	if reason, ok := state.ToString(-1); ok {
		result.Reason = strings.TrimSpace(reason)
	}
	if result.Reason == "" {
		switch {
		case result.Allowed == req.Allowed:
			result.Reason = req.Reason
		case result.Allowed:
			result.Reason = ReasonPolicyAllow
		default:
			result.Reason = ReasonPolicyDeny
		}
	}
	return result, nil
}

func pushRequest(state *lua.State, req Request) {
	state.NewTable()
	fields := []struct {
		key   string
		value string
	}{
		{"user_id", req.UserID},
		{"content_id", req.ContentID},
		{"level_id", req.LevelID},
		{"status", req.Status},
		{"reason", req.Reason},
	}
	for _, field := range fields {
		state.PushString(field.value)
		state.SetField(-2, field.key)
	}
	state.PushInteger(req.AccessLevel)
	state.SetField(-2, "access_level")
	state.PushBoolean(req.Allowed)
	state.SetField(-2, "allowed")
}
