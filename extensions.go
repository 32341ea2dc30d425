package grayv

// Extension sets requested from the driver.
var (
	// DeviceExtensionsRequired must all be present for an adapter to be suitable.
	DeviceExtensionsRequired = []string{
		"VK_KHR_swapchain",
	}

	// InstanceExtensionsWanted are enabled when available.
	InstanceExtensionsWanted = []string{
		"VK_KHR_surface",
	}

	// DebugInstanceExtensions are requested when validation is on.
	DebugInstanceExtensions = []string{
		"VK_EXT_debug_report",
	}

	// ValidationLayersWanted are requested when validation is on.
	ValidationLayersWanted = []string{
		"VK_LAYER_KHRONOS_validation",
	}
)

// checkExisting returns the wanted names found in actual and the ones missing,
// preserving the order of wanted and dropping duplicates.
func checkExisting(actual, wanted []string) (existing, missing []string) {
	have := make(map[string]struct{}, len(actual))
	for _, name := range actual {
		have[name] = struct{}{}
	}
	seen := make(map[string]struct{}, len(wanted))
	for _, name := range wanted {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if _, ok := have[name]; ok {
			existing = append(existing, name)
		} else {
			missing = append(missing, name)
		}
	}
	return existing, missing
}

func mergeNames(lists ...[]string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, name := range list {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}
