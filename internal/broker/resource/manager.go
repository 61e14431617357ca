package resource

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/autopeer-io/hmibroker/internal/pkg/metrics"
	"github.com/autopeer-io/hmibroker/pkg/log"
)

// ErrConflict is wrapped by every ConflictError.
var ErrConflict = errors.New("resource is in use")

// AccessMode is the kind of lease requested on a module.
type AccessMode int

const (
	// Exclusive admits a single holder and no shared holders.
	Exclusive AccessMode = iota
	// Shared admits several holders on shareable modules.
	Shared
)

func (m AccessMode) String() string {
	if m == Shared {
		return "shared"
	}
	return "exclusive"
}

// MarshalText renders the mode by name in JSON views.
func (m AccessMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses "shared" or "exclusive".
func (m *AccessMode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "shared":
		*m = Shared
	case "exclusive":
		*m = Exclusive
	default:
		return fmt.Errorf("unknown access mode %q", b)
	}
	return nil
}

// ConflictError reports that module is held by another application.
type ConflictError struct {
	Module string
	Holder string
	Mode   AccessMode
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("module %s is held %s by %s", e.Module, e.Mode, e.Holder)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// ModuleKey identifies a lease: the module type, optionally narrowed to one
// module instance, e.g. "SEAT/driver".
func ModuleKey(moduleType, moduleID string) string {
	if moduleID == "" {
		return moduleType
	}
	return moduleType + "/" + moduleID
}

// ModuleType returns the type part of a module key.
func ModuleType(key string) string {
	t, _, _ := strings.Cut(key, "/")
	return t
}

// Lease is a read-only view of one module lease.
type Lease struct {
	Module  string     `json:"module"`
	Mode    AccessMode `json:"mode"`
	Holders []string   `json:"holders"`
}

type lease struct {
	mode    AccessMode
	holders sets.Set[string]
}

// Manager arbitrates module access between applications on a first come,
// first served basis. There is no queueing and no preemption.
type Manager struct {
	mu        sync.Mutex
	leases    map[string]*lease
	shareable sets.Set[string]
	logger    log.Logger
}

// NewManager creates a Manager. Only module types in shareable can be leased
// in Shared mode; for every other type Shared is treated as Exclusive.
func NewManager(shareable []string) *Manager {
	return &Manager{
		leases:    make(map[string]*lease),
		shareable: sets.New(shareable...),
		logger:    log.WithName("resource"),
	}
}

// SetShareable replaces the shareable module types. Existing leases are kept.
func (m *Manager) SetShareable(shareable []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shareable = sets.New(shareable...)
}

// TryAcquire grants appID a lease on module or returns a *ConflictError.
//
// A repeated grant to a holder is idempotent; a sole shared holder asking
// for exclusive access is upgraded.
func (m *Manager) TryAcquire(module, appID string, mode AccessMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mode == Shared && !m.shareable.Has(ModuleType(module)) {
		mode = Exclusive
	}

	l, ok := m.leases[module]
	if !ok {
		m.leases[module] = &lease{mode: mode, holders: sets.New(appID)}
		metrics.ActiveLeases.Set(float64(len(m.leases)))
		m.logger.Debug("Lease granted", "module", module, "app", appID, "mode", mode)
		return nil
	}

	if l.holders.Has(appID) {
		if l.mode == Shared && mode == Exclusive {
			if other := otherHolder(l, appID); other != "" {
				return m.conflict(module, appID, other, l.mode)
			}
			l.mode = Exclusive
			m.logger.Debug("Lease upgraded", "module", module, "app", appID)
		}
		return nil
	}

	if l.mode == Exclusive || mode == Exclusive {
		return m.conflict(module, appID, firstHolder(l), l.mode)
	}

	l.holders.Insert(appID)
	m.logger.Debug("Shared lease joined", "module", module, "app", appID, "holders", len(l.holders))
	return nil
}

// Release removes the lease appID holds on module. It is a no-op for non-holders.
func (m *Manager) Release(module, appID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leases[module]
	if !ok {
		return
	}
	if !l.holders.Has(appID) {
		return
	}
	m.dropLocked(module, l, appID)
}

// ReleaseAll drops every lease held by appID and returns the freed modules.
func (m *Manager) ReleaseAll(appID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var freed []string
	for module, l := range m.leases {
		if l.holders.Has(appID) {
			m.dropLocked(module, l, appID)
			freed = append(freed, module)
		}
	}
	slices.Sort(freed)
	if len(freed) > 0 {
		m.logger.Info("Released application leases", "app", appID, "modules", freed)
	}
	return freed
}

// Holders returns the applications holding module, sorted.
func (m *Manager) Holders(module string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leases[module]
	if !ok {
		return nil
	}
	return sortedHolders(l)
}

// LeasesOf returns the modules held by appID, sorted.
func (m *Manager) LeasesOf(appID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for module, l := range m.leases {
		if l.holders.Has(appID) {
			out = append(out, module)
		}
	}
	slices.Sort(out)
	return out
}

// Snapshot returns every lease, sorted by module.
func (m *Manager) Snapshot() []Lease {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Lease, 0, len(m.leases))
	for module, l := range m.leases {
		out = append(out, Lease{Module: module, Mode: l.mode, Holders: sortedHolders(l)})
	}
	slices.SortFunc(out, func(a, b Lease) int { return strings.Compare(a.Module, b.Module) })
	return out
}

func (m *Manager) dropLocked(module string, l *lease, appID string) {
	l.holders.Delete(appID)
	if len(l.holders) == 0 {
		delete(m.leases, module)
		metrics.ActiveLeases.Set(float64(len(m.leases)))
	}
	m.logger.Debug("Lease released", "module", module, "app", appID)
}

func (m *Manager) conflict(module, appID, holder string, mode AccessMode) error {
	m.logger.Info("Lease denied", "module", module, "app", appID, "holder", holder, "mode", mode)
	return &ConflictError{Module: module, Holder: holder, Mode: mode}
}

func sortedHolders(l *lease) []string {
	return sets.List(l.holders)
}

func firstHolder(l *lease) string {
	return sortedHolders(l)[0]
}

func otherHolder(l *lease, appID string) string {
	for _, h := range sortedHolders(l) {
		if h != appID {
			return h
		}
	}
	return ""
}
