package authz

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"

	"github.com/authplane/authplane/internal/apperr"
	"github.com/authplane/authplane/internal/db/models"
)

// ActiveModelSource yields the currently published model-config version.
type ActiveModelSource interface {
	GetActive(ctx context.Context) (*models.ModelConfig, error)
}

// snapshot is an immutable model+policy bundle. Enforcement reads load the
// current snapshot pointer and never observe a half-reloaded enforcer.
type snapshot struct {
	enforcer   *casbin.Enforcer
	modelText  string
	passDomain bool
}

// Coordinator owns the single in-process enforcer handle. All mutating paths
// request Reload after committing; enforcement calls read the snapshot
// without blocking on a reload in progress.
type Coordinator struct {
	source  ActiveModelSource
	adapter persist.Adapter

	mu      sync.Mutex // serializes Reload; never held by readers
	current atomic.Pointer[snapshot]
}

// NewCoordinator wires the coordinator; no model is installed until the
// first Reload.
func NewCoordinator(source ActiveModelSource, adapter persist.Adapter) *Coordinator {
	return &Coordinator{source: source, adapter: adapter}
}

// Reload fetches the active model text, builds a fresh enforcer (parse model,
// register attrMatch, load the policy set), and swaps the snapshot pointer.
// With no active version it rebuilds against the previously installed model
// text, reloading only the policy set in effect.
//
// Errors are caught, logged, and reported as false: the previous snapshot
// stays installed, so a failed reload never leaves a torn state. The caller
// treats false as a warning; the store commit it follows already succeeded.
func (c *Coordinator) Reload(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		log.Printf("ERROR: enforcer reload canceled: %v", err)
		return false
	}

	active, err := c.source.GetActive(ctx)
	if err != nil {
		log.Printf("ERROR: enforcer reload: fetch active model: %v", err)
		return false
	}

	var text string
	switch {
	case active != nil:
		text = active.Content
	case c.current.Load() != nil:
		text = c.current.Load().modelText
	default:
		// Nothing published and nothing installed: policy mutations before
		// the first publish have no enforcer to refresh.
		log.Printf("INFO: enforcer reload skipped: no active model version")
		return true
	}

	m, err := model.NewModelFromString(text)
	if err != nil {
		log.Printf("ERROR: enforcer reload: parse model: %v", err)
		return false
	}

	enforcer, err := casbin.NewEnforcer(m, c.adapter)
	if err != nil {
		log.Printf("ERROR: enforcer reload: build enforcer: %v", err)
		return false
	}
	enforcer.AddFunction("attrMatch", AttrMatchFunction())

	c.current.Store(&snapshot{
		enforcer:   enforcer,
		modelText:  text,
		passDomain: requestHasDomain(m),
	})
	return true
}

// Ready reports whether a model has been installed.
func (c *Coordinator) Ready() bool {
	return c.current.Load() != nil
}

// Enforce evaluates one access request against the current snapshot. The
// domain argument is passed only when the installed model declares a fourth
// request token, so 3-token models keep working unchanged.
func (c *Coordinator) Enforce(sub, obj, act, dom string) (bool, error) {
	s := c.current.Load()
	if s == nil {
		return false, apperr.Internal("no model version published; enforcer not initialized")
	}

	var (
		allowed bool
		err     error
	)
	if s.passDomain {
		allowed, err = s.enforcer.Enforce(sub, obj, act, dom)
	} else {
		allowed, err = s.enforcer.Enforce(sub, obj, act)
	}
	if err != nil {
		return false, apperr.Internal("enforce: %v", err)
	}
	return allowed, nil
}

// requestHasDomain inspects the request definition's token count: 4 tokens
// (sub, obj, act, dom) means domain-aware matching.
func requestHasDomain(m model.Model) bool {
	if r, ok := m["r"]; ok {
		if def, ok := r["r"]; ok {
			return len(def.Tokens) >= 4
		}
	}
	return false
}
