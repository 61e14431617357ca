package capability

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/autopeer-io/hmibroker/internal/broker/core"
	"github.com/autopeer-io/hmibroker/internal/pkg/metrics"
	"github.com/autopeer-io/hmibroker/pkg/log"
)

// discovery is the fixed request sequence fired when a component reports that it cooperates.
var discovery = map[Component][]string{
	VR:          {core.MethodGetLanguage, core.MethodGetSupportedLanguages, core.MethodGetCapabilities},
	TTS:         {core.MethodGetLanguage, core.MethodGetSupportedLanguages, core.MethodGetCapabilities},
	UI:          {core.MethodGetLanguage, core.MethodGetSupportedLanguages, core.MethodGetCapabilities},
	Navigation:  nil,
	VehicleInfo: {core.MethodGetVehicleType},
}

// Payload keys of discovery answers.
const (
	keyAvailable        = "available"
	keyLanguage         = "language"
	keyLanguages        = "languages"
	keyVehicleType      = "vehicleType"
	keyResultCode       = "resultCode"
	keySupportedModules = "supportedModules"
	keyAttenuated       = "attenuatedSupported"
	keyDisplay          = "displayCapabilities"
	keyImageTypes       = "imageCapabilities"
)

// Negotiator drives the HMI capability handshake and exposes the readiness gate.
type Negotiator struct {
	store     *Store
	sender    core.Sender
	launchHMI bool
	logger    log.Logger

	// usable mirrors the last gate value observed, for transition logging.
	usable atomic.Bool
}

// NewNegotiator creates a Negotiator. With launchHMI disabled the gate is always open.
func NewNegotiator(store *Store, sender core.Sender, launchHMI bool) *Negotiator {
	return &Negotiator{
		store:     store,
		sender:    sender,
		launchHMI: launchHMI,
		logger:    log.WithName("capability"),
	}
}

// Begin asks every component whether it is ready.
func (n *Negotiator) Begin(ctx context.Context) error {
	if !n.launchHMI {
		n.logger.Info("HMI launch disabled, capability negotiation skipped")
		metrics.CapabilitiesUsable.Set(1)
		return nil
	}
	n.logger.Info("Starting HMI capability negotiation")

	var errs []error
	for _, c := range Components {
		if err := n.send(ctx, core.Function(string(c), core.MethodIsReady)); err != nil {
			errs = append(errs, err)
		}
	}
	return utilerrors.NewAggregate(errs)
}

// NotifyCooperation records a component's readiness answer. The first answer
// wins; a cooperating component then gets its discovery sequence.
func (n *Negotiator) NotifyCooperation(ctx context.Context, c Component, cooperating bool) error {
	first, usable, err := n.store.MarkReady(c, cooperating)
	if err != nil {
		n.logger.Error(err, "Readiness answer for unknown component", "component", c)
		return err
	}
	if !first {
		n.logger.Warn("Ignoring repeated readiness answer", "component", c, "cooperating", cooperating)
		return nil
	}

	n.logger.Info("Component readiness received", "component", c, "cooperating", cooperating)
	metrics.ComponentReady.WithLabelValues(string(c)).Set(metrics.BoolToFloat(cooperating))
	n.observe(usable)

	if !cooperating {
		return nil
	}
	for _, method := range discovery[c] {
		// Fire-and-forget: answers arrive through HandleDiscoveryEvent.
		if err := n.send(ctx, core.Function(string(c), method)); err != nil {
			n.logger.Error(err, "Discovery request failed", "component", c, "method", method)
		}
	}
	return nil
}

// SetComponentProperty stores one discovered property.
func (n *Negotiator) SetComponentProperty(c Component, f Field, value any) error {
	usable, err := n.store.Set(c, f, value)
	if err != nil {
		n.logger.Error(err, "Rejected capability property", "component", c, "field", f.String())
		return err
	}
	n.logger.Debug("Capability property stored", "component", c, "field", f.String())
	n.observe(usable)
	return nil
}

// IsReadyEvent extracts a readiness answer from an "<Component>.IsReady" event.
func IsReadyEvent(ev core.Event) (Component, bool, bool) {
	if ev.FunctionID.Method() != core.MethodIsReady {
		return "", false, false
	}
	c, err := ParseComponent(ev.FunctionID.Interface())
	if err != nil {
		return "", false, false
	}
	available, _ := ev.Payload[keyAvailable].(bool)
	return c, available, true
}

// HandleDiscoveryEvent applies a discovery answer. handled is false for
// events that are not part of the handshake.
func (n *Negotiator) HandleDiscoveryEvent(ev core.Event) (handled bool, err error) {
	c, err := ParseComponent(ev.FunctionID.Interface())
	if err != nil {
		return false, nil
	}

	var (
		field Field
		value any
	)
	switch ev.FunctionID.Method() {
	case core.MethodGetLanguage:
		field, value = ActiveLanguage, ev.Payload[keyLanguage]
	case core.MethodGetSupportedLanguages:
		field, value = SupportedLanguages, ev.Payload[keyLanguages]
	case core.MethodGetCapabilities:
		caps, err := core.ClonePayload(ev.Payload)
		if err != nil {
			return true, err
		}
		delete(caps, keyResultCode)
		field, value = Capabilities, caps
	case core.MethodGetVehicleType:
		vt, _ := core.Object(ev.Payload, keyVehicleType)
		field, value = VehicleType, core.Payload(vt)
	default:
		return false, nil
	}

	if code, ok := core.String(ev.Payload, keyResultCode); ok && code != "SUCCESS" {
		n.logger.Warn("HMI rejected discovery request", "function", ev.FunctionID, "resultCode", code)
		return true, fmt.Errorf("%s answered %s", ev.FunctionID, code)
	}
	return true, n.SetComponentProperty(c, field, value)
}

// IsUsable reports whether the capability handshake has completed.
func (n *Negotiator) IsUsable() bool {
	if !n.launchHMI {
		return true
	}
	return n.store.IsUsable()
}

// Snapshot returns a copy of all component states.
func (n *Negotiator) Snapshot() Snapshot {
	return n.store.Snapshot()
}

// Supports reports whether component c cooperates and, when it advertises a
// supportedModules list, whether module is on it.
func (n *Negotiator) Supports(c Component, module string) bool {
	if !n.launchHMI {
		return true
	}
	st, ok := n.store.Get(c)
	if !ok || !st.ReadyResponseReceived || !st.Cooperating {
		return false
	}
	list, ok := st.FeaturePayload[keySupportedModules].([]any)
	if !ok {
		return true
	}
	return slices.Contains(list, any(module))
}

// AttenuatedSupported reports whether the UI mixes audio with attenuation.
func (n *Negotiator) AttenuatedSupported() bool {
	st, _ := n.store.Get(UI)
	b, _ := st.FeaturePayload[keyAttenuated].(bool)
	return b
}

// VerifyImageType reports whether the UI display accepts images of the given type.
func (n *Negotiator) VerifyImageType(imageType string) bool {
	st, _ := n.store.Get(UI)
	display, ok := core.Object(st.FeaturePayload, keyDisplay)
	if !ok {
		return false
	}
	types, _ := display[keyImageTypes].([]any)
	return slices.Contains(types, any(imageType))
}

func (n *Negotiator) send(ctx context.Context, fn core.FunctionID) error {
	req := core.Request{
		FunctionID:    fn,
		CorrelationID: n.sender.NextCorrelationID(),
		Params:        core.Payload{},
	}
	if err := n.sender.Send(ctx, req); err != nil {
		return fmt.Errorf("send %s: %w", fn, err)
	}
	return nil
}

func (n *Negotiator) observe(usable bool) {
	metrics.CapabilitiesUsable.Set(metrics.BoolToFloat(usable))
	if n.usable.Swap(usable) == usable {
		if !usable {
			n.logger.Debug("HMI capabilities still negotiating", "missing", n.store.Snapshot().Missing())
		}
		return
	}
	if usable {
		n.logger.Info("HMI capabilities are usable")
	}
}
