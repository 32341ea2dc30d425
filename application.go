package grayv

// MakeVersion packs a version the way the Vulkan loader expects it.
func MakeVersion(major, minor, patch uint32) uint32 {
	return major<<22 | minor<<12 | patch
}

var (
	DefaultAppVersion = MakeVersion(1, 0, 0)
	DefaultAPIVersion = MakeVersion(1, 3, 0)
)

// AppInfo describes the application to the driver and carries the
// extension and layer requests for session construction.
type AppInfo struct {
	Name       string
	Version    uint32
	APIVersion uint32
	// Debug enables validation layers and the debug report callback.
	Debug bool
	// Policy picks the adapter. The zero value means PolicyPreferDiscrete.
	Policy AdapterPolicy

	InstanceExtensions []string
	DeviceExtensions   []string
	Layers             []string
}

// DefaultAppInfo returns the settings used by the command line tool.
func DefaultAppInfo() AppInfo {
	return AppInfo{
		Name:             "grayv",
		Version:          DefaultAppVersion,
		APIVersion:       DefaultAPIVersion,
		Policy:           PolicyPreferDiscrete,
		DeviceExtensions: DeviceExtensionsRequired,
	}
}

func (a AppInfo) instanceInfo(extensions, layers []string) InstanceInfo {
	name := a.Name
	if name == "" {
		name = "grayv"
	}
	api := a.APIVersion
	if api == 0 {
		api = DefaultAPIVersion
	}
	return InstanceInfo{
		AppName:    name,
		AppVersion: a.Version,
		APIVersion: api,
		EngineName: "grayv",
		Extensions: extensions,
		Layers:     layers,
		Debug:      a.Debug,
	}
}

func (a AppInfo) requiredDeviceExtensions() []string {
	return mergeNames(DeviceExtensionsRequired, a.DeviceExtensions)
}
