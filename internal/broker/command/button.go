package command

import (
	"slices"

	"github.com/autopeer-io/hmibroker/internal/broker/capability"
	"github.com/autopeer-io/hmibroker/internal/broker/core"
	"github.com/autopeer-io/hmibroker/internal/broker/resource"
)

const (
	keyButtonName      = "buttonName"
	keyButtonPressMode = "buttonPressMode"
)

var moduleButtons = map[string][]string{
	"CLIMATE": {
		"AC_MAX", "AC", "RECIRCULATE", "FAN_UP", "FAN_DOWN", "TEMP_UP", "TEMP_DOWN",
		"DEFROST_MAX", "DEFROST", "DEFROST_REAR", "UPPER_VENT", "LOWER_VENT",
	},
	"RADIO": {
		"VOLUME_UP", "VOLUME_DOWN", "EJECT", "SOURCE", "SHUFFLE", "REPEAT",
	},
}

var pressModes = []string{"LONG", "SHORT"}

// ButtonPress emulates a physical button on a module. It needs exclusive access.
type ButtonPress struct{}

var _ Kind = ButtonPress{}

func (ButtonPress) FunctionID() core.FunctionID {
	return core.FunctionButtonPress
}

func (ButtonPress) Validate(params core.Payload) (*Plan, error) {
	moduleType, moduleID, _, err := parseModule(params)
	if err != nil {
		return nil, err
	}
	buttons, ok := moduleButtons[moduleType]
	if !ok {
		return nil, invalid("%s has no buttons", moduleType)
	}
	name, _ := core.String(params, keyButtonName)
	if !slices.Contains(buttons, name) {
		return nil, invalid("button %q does not belong to %s", name, moduleType)
	}
	mode, _ := core.String(params, keyButtonPressMode)
	if !slices.Contains(pressModes, mode) {
		return nil, invalid("%s must be one of %v", keyButtonPressMode, pressModes)
	}

	out := core.Payload{keyModuleType: moduleType, keyButtonName: name, keyButtonPressMode: mode}
	if moduleID != "" {
		out[keyModuleID] = moduleID
	}
	return &Plan{
		Module:     resource.ModuleKey(moduleType, moduleID),
		ModuleType: moduleType,
		Operation:  core.FunctionButtonPress.Method(),
		Mode:       resource.Exclusive,
		Target:     capability.UI,
		SubRequests: []SubRequest{{
			FunctionID: core.FunctionButtonPress,
			Params:     out,
			Expected:   1,
		}},
	}, nil
}

func (ButtonPress) Assemble(_ *Plan, _ []core.Payload) (core.Payload, error) {
	return core.Payload{}, nil
}
