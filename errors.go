package grayv

import (
	"fmt"
	"runtime"

	"github.com/pkg/errors"
)

// Result mirrors VkResult for the codes the core interprets.
type Result int32

const (
	Success                 Result = 0
	NotReady                Result = 1
	Timeout                 Result = 2
	Incomplete              Result = 5
	Suboptimal              Result = 1000001003
	ErrorOutOfHostMemory    Result = -1
	ErrorOutOfDeviceMemory  Result = -2
	ErrorInitializationFail Result = -3
	ErrorDeviceLostResult   Result = -4
	ErrorLayerNotPresent    Result = -6
	ErrorExtensionMissing   Result = -7
	ErrorIncompatibleDriver Result = -9
	ErrorSurfaceLostResult  Result = -1000000000
	ErrorOutOfDateResult    Result = -1000001004
)

var (
	ErrNoSuitableAdapter       = errors.New("no suitable adapter")
	ErrDeviceCreationFailed    = errors.New("device creation failed")
	ErrSwapchainCreationFailed = errors.New("swapchain creation failed")
	ErrDeviceLost              = errors.New("device lost")
	ErrSurfaceLost             = errors.New("surface lost")
	ErrOutOfDate               = errors.New("surface out of date")
	ErrFileNotFound            = errors.New("file not found")
	ErrPreprocessFailed        = errors.New("shader preprocess failed")
	ErrCompileFailed           = errors.New("shader compile failed")
	ErrInvalidBytecode         = errors.New("invalid shader bytecode")
	ErrUnknownStage            = errors.New("unknown shader stage")
	ErrSessionInUse            = errors.New("session still has live dependents")
	ErrZeroExtent              = errors.New("surface extent is zero")
	ErrTooManyRebuilds         = errors.New("swapchain rebuilt too many times in one frame")
	ErrDestroyed               = errors.New("resource already destroyed")
	ErrUnknownPolicy           = errors.New("unknown adapter policy")
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case NotReady:
		return "not ready"
	case Timeout:
		return "timeout"
	case Incomplete:
		return "incomplete"
	case Suboptimal:
		return "suboptimal"
	case ErrorOutOfHostMemory:
		return "out of host memory"
	case ErrorOutOfDeviceMemory:
		return "out of device memory"
	case ErrorInitializationFail:
		return "initialization failed"
	case ErrorDeviceLostResult:
		return "device lost"
	case ErrorLayerNotPresent:
		return "layer not present"
	case ErrorExtensionMissing:
		return "extension not present"
	case ErrorIncompatibleDriver:
		return "incompatible driver"
	case ErrorSurfaceLostResult:
		return "surface lost"
	case ErrorOutOfDateResult:
		return "out of date"
	}
	return fmt.Sprintf("result(%d)", int32(r))
}

func isError(ret Result) bool {
	return ret != Success && ret != Suboptimal
}

// NewError turns a failing result into an error annotated with the caller.
// Device and surface loss keep their sentinel so errors.Is can classify them.
func NewError(ret Result) error {
	if !isError(ret) {
		return nil
	}
	var err error
	switch ret {
	case ErrorDeviceLostResult:
		err = ErrDeviceLost
	case ErrorSurfaceLostResult:
		err = ErrSurfaceLost
	case ErrorOutOfDateResult:
		err = ErrOutOfDate
	default:
		err = errors.Errorf("%s (%d)", ret, int32(ret))
	}
	if pc, file, line, ok := runtime.Caller(1); ok {
		fn := runtime.FuncForPC(pc)
		name := "?"
		if fn != nil {
			name = fn.Name()
		}
		return errors.Wrapf(err, "vulkan error on %s (%s:%d)", name, file, line)
	}
	return errors.Wrap(err, "vulkan error")
}

// IsFatal reports whether err ends the session.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDeviceLost) || errors.Is(err, ErrSurfaceLost)
}

func checkErr(err *error) {
	if v := recover(); v != nil {
		*err = errors.Errorf("%+v", v)
	}
}
