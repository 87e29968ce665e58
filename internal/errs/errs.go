// Package errs defines the failure taxonomy shared by every pipeline stage.
// Stages wrap these sentinels with fmt.Errorf("...: %w") so callers can classify
// failures with errors.Is.
package errs

import "errors"

var (
	// ErrMissingParameter means a required invocation input (the advertiser id) was absent.
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrInvalidParameter means an invocation input was present but unusable.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrTransport wraps failures of remote calls at the network or auth layer.
	ErrTransport = errors.New("transport error")

	// ErrStructuralStream means a payload could not be read as a zip archive or delimited text.
	ErrStructuralStream = errors.New("structural stream error")

	// ErrPollTimeout means a remote job did not finish within the polling bounds.
	ErrPollTimeout = errors.New("remote job did not complete in time")

	// ErrJobFailed means the remote system reported the job itself as failed.
	ErrJobFailed = errors.New("remote job failed")
)

// IsClientError reports whether err was caused by bad caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingParameter) || errors.Is(err, ErrInvalidParameter)
}
