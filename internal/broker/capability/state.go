package capability

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/autopeer-io/hmibroker/internal/broker/core"
)

var (
	// ErrUnknownComponent is returned for components outside the fixed HMI set.
	ErrUnknownComponent = errors.New("unknown hmi component")

	// ErrInvalidProperty is returned when a property value has the wrong shape.
	ErrInvalidProperty = errors.New("invalid capability property")
)

// Component is one HMI subsystem.
type Component string

const (
	VR          Component = core.InterfaceVR
	TTS         Component = core.InterfaceTTS
	UI          Component = core.InterfaceUI
	Navigation  Component = core.InterfaceNavigation
	VehicleInfo Component = core.InterfaceVehicleInfo
)

// Components lists every component in discovery order.
var Components = []Component{VR, TTS, UI, Navigation, VehicleInfo}

// ParseComponent maps an interface name to a Component.
func ParseComponent(s string) (Component, error) {
	for _, c := range Components {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownComponent, s)
}

// Language is an HMI language code such as "EN-US".
type Language string

// Field selects one capability property of a component.
type Field int

const (
	ActiveLanguage Field = iota
	SupportedLanguages
	Capabilities
	VehicleType
)

func (f Field) String() string {
	switch f {
	case ActiveLanguage:
		return "activeLanguage"
	case SupportedLanguages:
		return "supportedLanguages"
	case Capabilities:
		return "capabilities"
	case VehicleType:
		return "vehicleType"
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// State is the last known capability data of one component.
// Zero values mean "not yet received".
type State struct {
	Cooperating           bool
	ReadyResponseReceived bool
	ActiveLanguage        Language
	SupportedLanguages    sets.Set[Language]
	FeaturePayload        core.Payload
}

// DeepCopy returns a State that shares no memory with s.
func (s State) DeepCopy() State {
	out := s
	if s.SupportedLanguages != nil {
		out.SupportedLanguages = s.SupportedLanguages.Clone()
	}
	out.FeaturePayload = core.MustClonePayload(s.FeaturePayload)
	return out
}

// requiredFields reports whether a cooperating component has everything
// the broker needs before serving applications.
func requiredFields(c Component, s State) bool {
	switch c {
	case VR, TTS, UI:
		return s.ActiveLanguage != "" && s.SupportedLanguages != nil
	case VehicleInfo:
		return len(s.FeaturePayload) > 0
	default:
		return true
	}
}

// Snapshot is a point-in-time copy of every component's State.
type Snapshot map[Component]State

// Ready reports whether every component has answered its readiness probe.
func (s Snapshot) Ready() bool {
	for _, c := range Components {
		if !s[c].ReadyResponseReceived {
			return false
		}
	}
	return true
}

// Usable reports whether the handshake is complete: all components answered
// and every cooperating one has its required fields.
func (s Snapshot) Usable() bool {
	if !s.Ready() {
		return false
	}
	for _, c := range Components {
		st := s[c]
		if st.Cooperating && !requiredFields(c, st) {
			return false
		}
	}
	return true
}

// Missing lists "component.field" entries still blocking the gate.
func (s Snapshot) Missing() []string {
	var out []string
	for _, c := range Components {
		st := s[c]
		if !st.ReadyResponseReceived {
			out = append(out, string(c)+".ready")
			continue
		}
		if !st.Cooperating {
			continue
		}
		switch c {
		case VR, TTS, UI:
			if st.ActiveLanguage == "" {
				out = append(out, string(c)+"."+ActiveLanguage.String())
			}
			if st.SupportedLanguages == nil {
				out = append(out, string(c)+"."+SupportedLanguages.String())
			}
		case VehicleInfo:
			if len(st.FeaturePayload) == 0 {
				out = append(out, string(c)+"."+VehicleType.String())
			}
		}
	}
	return out
}

// ComponentStatus is the reportable form of one component's State.
type ComponentStatus struct {
	Component          Component `json:"component"`
	Ready              bool      `json:"ready"`
	Cooperating        bool      `json:"cooperating"`
	ActiveLanguage     Language  `json:"activeLanguage,omitempty"`
	SupportedLanguages []string  `json:"supportedLanguages,omitempty"`
	// Features lists the top-level keys of the capability payload.
	Features []string `json:"features,omitempty"`
}

// Status returns one entry per component in discovery order.
func (s Snapshot) Status() []ComponentStatus {
	out := make([]ComponentStatus, 0, len(Components))
	for _, c := range Components {
		st := s[c]
		cs := ComponentStatus{
			Component:      c,
			Ready:          st.ReadyResponseReceived,
			Cooperating:    st.Cooperating,
			ActiveLanguage: st.ActiveLanguage,
			Features:       slices.Sorted(maps.Keys(st.FeaturePayload)),
		}
		for _, l := range sets.List(st.SupportedLanguages) {
			cs.SupportedLanguages = append(cs.SupportedLanguages, string(l))
		}
		out = append(out, cs)
	}
	return out
}
