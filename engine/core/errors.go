package core

import (
	"errors"
)

var (
	ErrNoInput                = errors.New("no input container given")
	ErrNotVideoContainer      = errors.New("input is not an mp4 container")
	ErrNoVideoTrack           = errors.New("container has no video track")
	ErrSampleMismatch         = errors.New("sample does not match expectation")
	ErrValidationLayerMissing = errors.New("validation layer not available")
	ErrNoSuitableDevice       = errors.New("couldn't find suitable device")
	ErrNoSuitableMemoryType   = errors.New("no suitable memory type")
	ErrExecutorBusy           = errors.New("command executor has a submission in flight")
	ErrExecutorReleased       = errors.New("command executor released")
	ErrInvalidSPIRV           = errors.New("invalid spir-v bytecode")
	ErrEmptyUpload            = errors.New("nothing to upload")
	ErrSwapchainOutOfDate     = errors.New("swapchain out of date, recreated")
)
