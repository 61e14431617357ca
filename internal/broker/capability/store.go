package capability

import (
	"fmt"
	"sync"
	"sync/atomic"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/autopeer-io/hmibroker/internal/broker/core"
)

// Store owns the capability state of every HMI component.
//
// All five components exist from construction; the store never creates or
// removes entries. Every mutation recomputes the usable gate so that readers
// of IsUsable never take the lock.
type Store struct {
	mu     sync.RWMutex
	states map[Component]*State
	usable atomic.Bool
}

// NewStore returns a store with every component present and nothing received.
func NewStore() *Store {
	s := &Store{states: make(map[Component]*State, len(Components))}
	for _, c := range Components {
		s.states[c] = &State{}
	}
	return s
}

// MarkReady records a readiness answer. Only the first answer per component
// is applied; first is false for every later call.
func (s *Store) MarkReady(c Component, cooperating bool) (first bool, usable bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[c]
	if !ok {
		return false, s.usable.Load(), fmt.Errorf("%w: %q", ErrUnknownComponent, c)
	}
	if st.ReadyResponseReceived {
		return false, s.usable.Load(), nil
	}

	st.ReadyResponseReceived = true
	st.Cooperating = cooperating
	return true, s.recomputeLocked(), nil
}

// Set stores one property of a component. The value is deep-copied.
func (s *Store) Set(c Component, f Field, value any) (usable bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[c]
	if !ok {
		return s.usable.Load(), fmt.Errorf("%w: %q", ErrUnknownComponent, c)
	}

	switch f {
	case ActiveLanguage:
		if !hasLanguages(c) {
			return s.usable.Load(), fmt.Errorf("%w: %s has no %s", ErrInvalidProperty, c, f)
		}
		lang, err := toLanguage(value)
		if err != nil {
			return s.usable.Load(), err
		}
		st.ActiveLanguage = lang
	case SupportedLanguages:
		if !hasLanguages(c) {
			return s.usable.Load(), fmt.Errorf("%w: %s has no %s", ErrInvalidProperty, c, f)
		}
		langs, err := toLanguageSet(value)
		if err != nil {
			return s.usable.Load(), err
		}
		st.SupportedLanguages = langs
	case Capabilities, VehicleType:
		if f == VehicleType && c != VehicleInfo {
			return s.usable.Load(), fmt.Errorf("%w: %s has no %s", ErrInvalidProperty, c, f)
		}
		p, ok := value.(core.Payload)
		if !ok {
			return s.usable.Load(), fmt.Errorf("%w: %s wants an object, got %T", ErrInvalidProperty, f, value)
		}
		cp, err := core.ClonePayload(p)
		if err != nil {
			return s.usable.Load(), fmt.Errorf("%w: %w", ErrInvalidProperty, err)
		}
		st.FeaturePayload = cp
	default:
		return s.usable.Load(), fmt.Errorf("%w: unknown field %s", ErrInvalidProperty, f)
	}

	return s.recomputeLocked(), nil
}

// Get returns a deep copy of one component's state.
func (s *Store) Get(c Component) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[c]
	if !ok {
		return State{}, false
	}
	return st.DeepCopy(), true
}

// Snapshot returns a deep copy of all states.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// IsUsable reads the gate computed at the last mutation.
func (s *Store) IsUsable() bool {
	return s.usable.Load()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := make(Snapshot, len(s.states))
	for c, st := range s.states {
		snap[c] = st.DeepCopy()
	}
	return snap
}

func (s *Store) recomputeLocked() bool {
	snap := make(Snapshot, len(s.states))
	for c, st := range s.states {
		// Shallow copies suffice for the gate check.
		snap[c] = *st
	}
	u := snap.Usable()
	s.usable.Store(u)
	return u
}

func hasLanguages(c Component) bool {
	return c == VR || c == TTS || c == UI
}

func toLanguage(v any) (Language, error) {
	var lang Language
	switch t := v.(type) {
	case Language:
		lang = t
	case string:
		lang = Language(t)
	default:
		return "", fmt.Errorf("%w: language wants a string, got %T", ErrInvalidProperty, v)
	}
	if lang == "" {
		return "", fmt.Errorf("%w: empty language", ErrInvalidProperty)
	}
	return lang, nil
}

func toLanguageSet(v any) (sets.Set[Language], error) {
	out := sets.New[Language]()
	switch t := v.(type) {
	case sets.Set[Language]:
		return t.Clone(), nil
	case []Language:
		out.Insert(t...)
	case []string:
		for _, s := range t {
			out.Insert(Language(s))
		}
	case []any:
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: language list holds %T", ErrInvalidProperty, e)
			}
			out.Insert(Language(s))
		}
	default:
		return nil, fmt.Errorf("%w: language list wants a list, got %T", ErrInvalidProperty, v)
	}
	return out, nil
}
