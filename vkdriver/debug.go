package vkdriver

import (
	"unsafe"

	"github.com/andewx/grayv/log"
	vk "github.com/vulkan-go/vulkan"
)

var validationLog = log.New("validation")

func debugReportFlags() vk.DebugReportFlags {
	return vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit)
}

// dbgCallbackFunc forwards validation layer reports to the validation logger.
func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		validationLog.Errorf("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		validationLog.Warningf("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		validationLog.Warningf("performance: [%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		validationLog.Debugf("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	default:
		validationLog.Infof("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
