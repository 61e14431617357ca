package core

// HMI interfaces.
const (
	InterfaceVR          = "VR"
	InterfaceTTS         = "TTS"
	InterfaceUI          = "UI"
	InterfaceNavigation  = "Navigation"
	InterfaceVehicleInfo = "VehicleInfo"
	InterfaceRC          = "RC"
	InterfaceButtons     = "Buttons"
)

// Capability discovery.
const (
	MethodIsReady               = "IsReady"
	MethodGetLanguage           = "GetLanguage"
	MethodGetSupportedLanguages = "GetSupportedLanguages"
	MethodGetCapabilities       = "GetCapabilities"
	MethodGetVehicleType        = "GetVehicleType"
)

// Remote control.
const (
	FunctionSetInteriorVehicleData FunctionID = "RC.SetInteriorVehicleData"
	FunctionGetInteriorVehicleData FunctionID = "RC.GetInteriorVehicleData"
	FunctionButtonPress            FunctionID = "Buttons.ButtonPress"
)

// Function joins an interface and a method into a FunctionID.
func Function(iface, method string) FunctionID {
	return FunctionID(iface + "." + method)
}
