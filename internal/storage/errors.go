package storage

import "fmt"

// The adapter's failure taxonomy. No retries happen at this layer; every
// failure propagates to the caller, which owns retry policy.

// ConfigError reports a required setting absent from the environment.
type ConfigError struct {
	Setting string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("required setting %s is not set", e.Setting)
}

// AuthError reports a handshake rejected by the service.
type AuthError struct {
	Reason string
	Output string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// ProtocolError reports unintelligible utility output or a missing expected
// field. Fatal during the handshake; listings degrade to empty results
// instead.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected utility response: %s", e.Reason)
}

// TransferError reports a failed step of a transfer sequence. Step is the
// 1-based index into the upload saga; earlier steps are not rolled back, so
// a partial upload may remain visible at the staging path.
type TransferError struct {
	Step   int
	Name   string
	Output string
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer step %d (%s) failed: %v", e.Step, e.Name, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a remote or staged file missing after an operation
// that should have produced it.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}
