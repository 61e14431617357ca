// Package policy decides which vehicle modules an application may control.
package policy

import (
	"sync"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/autopeer-io/hmibroker/internal/broker/core"
	"github.com/autopeer-io/hmibroker/pkg/log"
	"github.com/autopeer-io/hmibroker/pkg/options"
)

const anyModule = "*"

var _ core.PolicyChecker = (*Static)(nil)

// Static is a PolicyChecker backed by a per application list of module types.
// Every operation on a permitted module is allowed.
type Static struct {
	mu           sync.RWMutex
	defaultAllow bool
	rules        map[string]sets.Set[string]
	logger       log.Logger
}

// NewStatic builds a checker from opts.
func NewStatic(opts *options.PolicyOptions) *Static {
	s := &Static{logger: log.WithName("policy")}
	s.Reload(opts)
	return s
}

// Reload replaces the rule table. Requests already past the policy check are not affected.
func (s *Static) Reload(opts *options.PolicyOptions) {
	rules := make(map[string]sets.Set[string], len(opts.Rules))
	for app, modules := range opts.Rules {
		rules[app] = sets.New(options.SplitModules(modules)...)
	}

	s.mu.Lock()
	s.defaultAllow = opts.DefaultAllow
	s.rules = rules
	s.mu.Unlock()

	s.logger.Info("Policy loaded", "applications", len(rules), "defaultAllow", opts.DefaultAllow)
}

// IsOperationPermitted implements core.PolicyChecker.
func (s *Static) IsOperationPermitted(appID, module, operation string) bool {
	s.mu.RLock()
	allowed, ok := s.rules[appID]
	defaultAllow := s.defaultAllow
	s.mu.RUnlock()

	permitted := defaultAllow
	if ok {
		permitted = allowed.Has(anyModule) || allowed.Has(module)
	}
	if !permitted {
		s.logger.Debug("Operation denied", "app", appID, "module", module, "operation", operation)
	}
	return permitted
}
