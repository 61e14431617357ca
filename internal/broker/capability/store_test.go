package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/autopeer-io/hmibroker/internal/broker/core"
)

func TestStoreMarkReadyFirstAnswerWins(t *testing.T) {
	s := NewStore()

	first, _, err := s.MarkReady(VR, true)
	require.NoError(t, err)
	assert.True(t, first)

	first, _, err = s.MarkReady(VR, false)
	require.NoError(t, err)
	assert.False(t, first)

	st, ok := s.Get(VR)
	require.True(t, ok)
	assert.True(t, st.ReadyResponseReceived)
	assert.True(t, st.Cooperating)
}

func TestStoreUnknownComponent(t *testing.T) {
	s := NewStore()

	_, _, err := s.MarkReady(Component("Phone"), true)
	assert.ErrorIs(t, err, ErrUnknownComponent)

	_, err = s.Set(Component("Phone"), ActiveLanguage, "EN-US")
	assert.ErrorIs(t, err, ErrUnknownComponent)

	_, ok := s.Get(Component("Phone"))
	assert.False(t, ok)
	assert.Len(t, s.Snapshot(), len(Components))
}

func TestStoreSetValidation(t *testing.T) {
	tests := []struct {
		name  string
		c     Component
		f     Field
		value any
	}{
		{"language on navigation", Navigation, ActiveLanguage, "EN-US"},
		{"empty language", VR, ActiveLanguage, ""},
		{"numeric language", VR, ActiveLanguage, float64(1)},
		{"language list of numbers", TTS, SupportedLanguages, []any{"EN-US", float64(2)}},
		{"vehicle type on ui", UI, VehicleType, core.Payload{"make": "Ford"}},
		{"capabilities not an object", UI, Capabilities, "text"},
		{"capabilities not json", UI, Capabilities, core.Payload{"n": 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			_, err := s.Set(tt.c, tt.f, tt.value)
			assert.ErrorIs(t, err, ErrInvalidProperty)
		})
	}
}

func TestStoreCopiesPayloads(t *testing.T) {
	s := NewStore()
	caps := core.Payload{"displayCapabilities": map[string]any{"imageCapabilities": []any{"STATIC"}}}

	_, err := s.Set(UI, Capabilities, caps)
	require.NoError(t, err)

	caps["displayCapabilities"].(map[string]any)["imageCapabilities"] = []any{}

	st, _ := s.Get(UI)
	got := st.FeaturePayload["displayCapabilities"].(map[string]any)["imageCapabilities"]
	assert.Equal(t, []any{"STATIC"}, got)

	st.FeaturePayload["mutated"] = true
	again, _ := s.Get(UI)
	assert.NotContains(t, again.FeaturePayload, "mutated")
}

func TestStoreLanguageShapes(t *testing.T) {
	s := NewStore()

	_, err := s.Set(VR, SupportedLanguages, []any{"EN-US", "DE-DE"})
	require.NoError(t, err)
	_, err = s.Set(TTS, SupportedLanguages, []string{"EN-US"})
	require.NoError(t, err)
	_, err = s.Set(UI, SupportedLanguages, sets.New[Language]("FR-FR"))
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.True(t, snap[VR].SupportedLanguages.HasAll("EN-US", "DE-DE"))
	assert.True(t, snap[TTS].SupportedLanguages.Has("EN-US"))
	assert.True(t, snap[UI].SupportedLanguages.Has("FR-FR"))
}

// fill gives every cooperating component its required fields.
func fill(t *testing.T, s *Store, skip ...string) {
	t.Helper()
	skipped := sets.New(skip...)
	for _, c := range []Component{VR, TTS, UI} {
		if !skipped.Has(string(c) + ".language") {
			_, err := s.Set(c, ActiveLanguage, "EN-US")
			require.NoError(t, err)
		}
		if !skipped.Has(string(c) + ".languages") {
			_, err := s.Set(c, SupportedLanguages, []any{"EN-US"})
			require.NoError(t, err)
		}
	}
	if !skipped.Has("VehicleInfo.vehicleType") {
		_, err := s.Set(VehicleInfo, VehicleType, core.Payload{"make": "Ford", "model": "Mustang"})
		require.NoError(t, err)
	}
}

func TestUsableGate(t *testing.T) {
	all := Components

	tests := []struct {
		name           string
		ready          []Component
		notCooperating []Component
		skip           []string
		want           bool
	}{
		{"all cooperating with fields", all, nil, nil, true},
		{"four cooperating one not", all, []Component{TTS}, nil, true},
		{"non cooperating component needs no fields", all, []Component{VehicleInfo}, []string{"VehicleInfo.vehicleType"}, true},
		{"missing ui language", all, nil, []string{"UI.language"}, false},
		{"missing vr languages", all, nil, []string{"VR.languages"}, false},
		{"missing vehicle type", all, nil, []string{"VehicleInfo.vehicleType"}, false},
		{"four readiness answers", []Component{VR, TTS, UI, VehicleInfo}, nil, nil, false},
		{"no readiness answers", nil, nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			off := sets.New(tt.notCooperating...)
			for _, c := range tt.ready {
				_, _, err := s.MarkReady(c, !off.Has(c))
				require.NoError(t, err)
			}
			fill(t, s, tt.skip...)

			assert.Equal(t, tt.want, s.IsUsable())
			assert.Equal(t, tt.want, s.Snapshot().Usable())
			assert.Equal(t, tt.want, len(s.Snapshot().Missing()) == 0)
		})
	}
}

func TestEmptyVehicleTypeIsNotEnough(t *testing.T) {
	s := NewStore()
	for _, c := range Components {
		_, _, err := s.MarkReady(c, true)
		require.NoError(t, err)
	}
	fill(t, s, "VehicleInfo.vehicleType")

	usable, err := s.Set(VehicleInfo, VehicleType, core.Payload{})
	require.NoError(t, err)
	assert.False(t, usable)
	assert.Equal(t, []string{"VehicleInfo.vehicleType"}, s.Snapshot().Missing())
}

func TestSnapshotStatus(t *testing.T) {
	s := NewStore()
	_, _, err := s.MarkReady(UI, true)
	require.NoError(t, err)
	_, err = s.Set(UI, SupportedLanguages, []string{"FR-FR", "EN-US"})
	require.NoError(t, err)
	_, err = s.Set(UI, Capabilities, core.Payload{"hmiZoneCapabilities": "FRONT", "attenuatedSupported": true})
	require.NoError(t, err)

	status := s.Snapshot().Status()
	require.Len(t, status, len(Components))
	assert.Equal(t, VR, status[0].Component)
	assert.False(t, status[0].Ready)

	ui := status[2]
	assert.Equal(t, UI, ui.Component)
	assert.True(t, ui.Ready)
	assert.True(t, ui.Cooperating)
	assert.Equal(t, []string{"EN-US", "FR-FR"}, ui.SupportedLanguages)
	assert.Equal(t, []string{"attenuatedSupported", "hmiZoneCapabilities"}, ui.Features)
}
