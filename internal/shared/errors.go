package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Transport errors
	ErrTransportUnavailable = fmt.Errorf("progress channel unavailable")
	ErrChannelClosed        = fmt.Errorf("progress channel closed")
	ErrAPIRequest           = fmt.Errorf("API request failed")
	ErrSubmissionRejected   = fmt.Errorf("submission rejected")

	// Job errors
	ErrSubmitDisabled = fmt.Errorf("submission disabled")
	ErrJobFailed      = fmt.Errorf("job failed")

	// Push channel message errors
	ErrMalformedEvent = fmt.Errorf("malformed event")
	ErrUnknownEvent   = fmt.Errorf("unknown event type")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrRejectedFile    = fmt.Errorf("file rejected")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")

	// Persistence errors
	ErrJobNotFound = fmt.Errorf("job not found")
)
