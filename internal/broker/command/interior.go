package command

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/autopeer-io/hmibroker/internal/broker/capability"
	"github.com/autopeer-io/hmibroker/internal/broker/core"
	"github.com/autopeer-io/hmibroker/internal/broker/resource"
)

const (
	keyModuleData = "moduleData"
	keyModuleType = "moduleType"
	keyModuleID   = "moduleId"
	keySubscribe  = "subscribe"
)

// moduleSpec describes the controllable surface of one module type.
type moduleSpec struct {
	// dataKey holds the module's control data inside moduleData.
	dataKey string
	// readOnly parameters are reported by the vehicle and never written.
	readOnly []string
	// ranges bound numeric parameters, inclusive.
	ranges map[string][2]float64
	// enums restrict string parameters.
	enums map[string][]string
}

var modules = map[string]moduleSpec{
	"RADIO": {
		dataKey:  "radioControlData",
		readOnly: []string{"rdsData", "availableHDs", "signalStrength", "signalChangeThreshold", "state", "sisData"},
		ranges: map[string][2]float64{
			"frequencyInteger":  {0, 1710},
			"frequencyFraction": {0, 9},
			"hdChannel":         {0, 7},
		},
		enums: map[string][]string{"band": {"AM", "FM", "XM"}},
	},
	"CLIMATE": {
		dataKey:  "climateControlData",
		readOnly: []string{"currentTemperature"},
		ranges:   map[string][2]float64{"fanSpeed": {0, 100}},
		enums: map[string][]string{
			"defrostZone":     {"FRONT", "REAR", "ALL", "NONE"},
			"ventilationMode": {"UPPER", "LOWER", "BOTH", "NONE"},
		},
	},
	"SEAT": {
		dataKey: "seatControlData",
		ranges: map[string][2]float64{
			"heatingLevel":       {0, 100},
			"coolingLevel":       {0, 100},
			"horizontalPosition": {0, 100},
			"verticalPosition":   {0, 100},
			"backTiltAngle":      {0, 100},
		},
		enums: map[string][]string{"id": {"DRIVER", "FRONT_PASSENGER"}},
	},
	"AUDIO": {
		dataKey:  "audioControlData",
		readOnly: []string{"keepContext"},
		ranges:   map[string][2]float64{"volume": {0, 100}},
		enums:    map[string][]string{"source": {"AM", "FM", "XM", "USB", "BLUETOOTH_STEREO_BTST", "LINE_IN", "CD", "MOBILE_APP"}},
	},
	"LIGHT": {
		dataKey: "lightControlData",
	},
	"HMI_SETTINGS": {
		dataKey: "hmiSettingsControlData",
		enums: map[string][]string{
			"displayMode":     {"DAY", "NIGHT", "AUTO"},
			"temperatureUnit": {"FAHRENHEIT", "CELSIUS"},
			"distanceUnit":    {"MILES", "KILOMETERS"},
		},
	},
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidData, fmt.Sprintf(format, args...))
}

// parseModule reads moduleType and the optional moduleId.
func parseModule(p core.Payload) (string, string, moduleSpec, error) {
	moduleType, ok := core.String(p, keyModuleType)
	if !ok {
		return "", "", moduleSpec{}, invalid("%s is required", keyModuleType)
	}
	spec, ok := modules[moduleType]
	if !ok {
		return "", "", moduleSpec{}, invalid("unknown %s %q", keyModuleType, moduleType)
	}
	moduleID := ""
	if v, present := p[keyModuleID]; present {
		if moduleID, ok = v.(string); !ok || strings.Contains(moduleID, "/") {
			return "", "", moduleSpec{}, invalid("%s must be a plain string", keyModuleID)
		}
	}
	return moduleType, moduleID, spec, nil
}

func checkControlData(moduleType string, spec moduleSpec, data core.Payload) error {
	for _, name := range slices.Sorted(maps.Keys(spec.ranges)) {
		v, present := data[name]
		if !present {
			continue
		}
		n, ok := core.Number(data, name)
		if !ok {
			return invalid("%s.%s must be a number", moduleType, name)
		}
		bounds := spec.ranges[name]
		if n < bounds[0] || n > bounds[1] {
			return invalid("%s.%s=%v out of range [%v, %v]", moduleType, name, v, bounds[0], bounds[1])
		}
	}
	for _, name := range slices.Sorted(maps.Keys(spec.enums)) {
		if _, present := data[name]; !present {
			continue
		}
		s, ok := core.String(data, name)
		if !ok || !slices.Contains(spec.enums[name], s) {
			return invalid("%s.%s must be one of %v", moduleType, name, spec.enums[name])
		}
	}
	return nil
}

// SetInteriorVehicleData writes module control data. Writes need exclusive access.
type SetInteriorVehicleData struct{}

var _ Kind = SetInteriorVehicleData{}

func (SetInteriorVehicleData) FunctionID() core.FunctionID {
	return core.FunctionSetInteriorVehicleData
}

func (SetInteriorVehicleData) Validate(params core.Payload) (*Plan, error) {
	moduleData, ok := core.Object(params, keyModuleData)
	if !ok {
		return nil, invalid("%s is required", keyModuleData)
	}
	moduleType, moduleID, spec, err := parseModule(moduleData)
	if err != nil {
		return nil, err
	}

	// Exactly the control data matching moduleType may be present.
	for other, s := range modules {
		if other != moduleType {
			if _, present := moduleData[s.dataKey]; present {
				return nil, invalid("%s does not match %s %s", s.dataKey, keyModuleType, moduleType)
			}
		}
	}
	data, ok := core.Object(moduleData, spec.dataKey)
	if !ok {
		return nil, invalid("%s is required for %s", spec.dataKey, moduleType)
	}

	data, err = core.ClonePayload(data)
	if err != nil {
		return nil, invalid("%v", err)
	}
	var stripped []string
	for _, name := range spec.readOnly {
		if _, present := data[name]; present {
			delete(data, name)
			stripped = append(stripped, name)
		}
	}
	if len(data) == 0 {
		if len(stripped) > 0 {
			return nil, invalid("%s holds read-only parameters only", spec.dataKey)
		}
		return nil, invalid("%s is empty", spec.dataKey)
	}
	if err := checkControlData(moduleType, spec, data); err != nil {
		return nil, err
	}

	outData := core.Payload{keyModuleType: moduleType, spec.dataKey: data}
	if moduleID != "" {
		outData[keyModuleID] = moduleID
	}

	plan := &Plan{
		Module:     resource.ModuleKey(moduleType, moduleID),
		ModuleType: moduleType,
		Operation:  core.FunctionSetInteriorVehicleData.Method(),
		Mode:       resource.Exclusive,
		Target:     capability.VehicleInfo,
		SubRequests: []SubRequest{{
			FunctionID: core.FunctionSetInteriorVehicleData,
			Params:     core.Payload{keyModuleData: outData},
			Expected:   1,
		}},
	}
	if len(stripped) > 0 {
		plan.Info = fmt.Sprintf("read-only parameters ignored: %s", strings.Join(stripped, ", "))
	}
	return plan, nil
}

func (SetInteriorVehicleData) Assemble(_ *Plan, events []core.Payload) (core.Payload, error) {
	merged := mergeEvents(events)
	moduleData, ok := core.Object(merged, keyModuleData)
	if !ok {
		return nil, fmt.Errorf("hmi response carries no %s", keyModuleData)
	}
	return core.Payload{keyModuleData: moduleData}, nil
}

// GetInteriorVehicleData reads module data. Reads share the module.
type GetInteriorVehicleData struct{}

var _ Kind = GetInteriorVehicleData{}

func (GetInteriorVehicleData) FunctionID() core.FunctionID {
	return core.FunctionGetInteriorVehicleData
}

func (GetInteriorVehicleData) Validate(params core.Payload) (*Plan, error) {
	moduleType, moduleID, _, err := parseModule(params)
	if err != nil {
		return nil, err
	}
	out := core.Payload{keyModuleType: moduleType}
	if moduleID != "" {
		out[keyModuleID] = moduleID
	}
	if v, present := params[keySubscribe]; present {
		b, ok := v.(bool)
		if !ok {
			return nil, invalid("%s must be a boolean", keySubscribe)
		}
		out[keySubscribe] = b
	}

	return &Plan{
		Module:     resource.ModuleKey(moduleType, moduleID),
		ModuleType: moduleType,
		Operation:  core.FunctionGetInteriorVehicleData.Method(),
		Mode:       resource.Shared,
		Target:     capability.VehicleInfo,
		SubRequests: []SubRequest{{
			FunctionID: core.FunctionGetInteriorVehicleData,
			Params:     out,
			Expected:   1,
		}},
	}, nil
}

func (GetInteriorVehicleData) Assemble(_ *Plan, events []core.Payload) (core.Payload, error) {
	merged := mergeEvents(events)
	if _, ok := core.Object(merged, keyModuleData); !ok {
		return nil, fmt.Errorf("hmi response carries no %s", keyModuleData)
	}
	return merged, nil
}
