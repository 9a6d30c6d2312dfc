package spatializer

import "errors"

var (
	// ErrResourceLoadFailed indicates a resource that could not be resolved,
	// decoded or installed. The previous tables stay in place.
	ErrResourceLoadFailed = errors.New("spatializer: resource load failed")
	// ErrInvalidParameterWrite indicates a write to a read-only or unknown
	// parameter, or a non-finite value.
	ErrInvalidParameterWrite = errors.New("spatializer: invalid parameter write")
	// ErrEngineNotReady indicates the engine cannot render spatialized output yet.
	ErrEngineNotReady = errors.New("spatializer: engine not ready")
	// ErrReinitRequired indicates a core change dropped the tables and they
	// have not been reloaded.
	ErrReinitRequired = errors.New("spatializer: core reinitialised, tables must be reloaded")
	// ErrUnknownParameter indicates a parameter ID outside the enumeration.
	ErrUnknownParameter = errors.New("spatializer: unknown parameter")
	// ErrClosed indicates use of a closed State or released Voice.
	ErrClosed = errors.New("spatializer: closed")
)
