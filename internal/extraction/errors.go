package extraction

// ErrorCode identifies the kind of extraction problem.
type ErrorCode string

const (
	// ErrSyntax: the parser hit malformed input. Recoverable unless nothing parsed.
	ErrSyntax ErrorCode = "SYNTAX_ERROR"

	// ErrUnsupportedConstruct: a construct was skipped. Always recoverable.
	ErrUnsupportedConstruct ErrorCode = "UNSUPPORTED_CONSTRUCT"

	// ErrRead: the file could not be read or exceeded the size limit.
	ErrRead ErrorCode = "READ_ERROR"

	// ErrBackendUnavailable: the selected semantic backend cannot run.
	ErrBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"

	// ErrBackendTimeout: the semantic backend exceeded its deadline.
	ErrBackendTimeout ErrorCode = "BACKEND_TIMEOUT"

	// ErrBackendFailure: the semantic backend exited non-zero or produced unusable output.
	ErrBackendFailure ErrorCode = "BACKEND_FAILURE"
)

// IsBackendFailure reports whether the code marks a whole-language backend failure.
func (c ErrorCode) IsBackendFailure() bool {
	switch c {
	case ErrBackendUnavailable, ErrBackendTimeout, ErrBackendFailure:
		return true
	}
	return false
}
