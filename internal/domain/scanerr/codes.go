// Package scanerr provides the typed error taxonomy of the scan pipeline.
// Every failure surfaced to a caller carries a Code so that transports can
// map it to a status without string matching.
package scanerr

// Code represents a specific failure condition.
// Codes are strings so they serialize naturally into JSON responses.
type Code string

const (
	// CodeInvalidConfig indicates the configuration is missing or malformed.
	CodeInvalidConfig Code = "INVALID_CONFIGURATION"

	// CodeInvalidInput indicates a rejected request: bad file type, empty
	// filename, or a project key or token outside the allowed alphabet.
	CodeInvalidInput Code = "INVALID_INPUT"

	// CodeTooLarge indicates the uploaded archive exceeds the size limit.
	CodeTooLarge Code = "PAYLOAD_TOO_LARGE"

	// CodeExtractionFailed indicates a corrupt archive or an entry that
	// would escape the extraction directory.
	CodeExtractionFailed Code = "EXTRACTION_FAILED"

	// CodeSignatureInvalid indicates the archive failed checksum or
	// signature verification.
	CodeSignatureInvalid Code = "SIGNATURE_INVALID"

	// CodeUnsupportedToolchain indicates the toolchain label is unknown.
	CodeUnsupportedToolchain Code = "UNSUPPORTED_TOOLCHAIN"

	// CodeNotFound indicates a required file or directory does not exist,
	// such as the solution descriptor of a .NET codebase.
	CodeNotFound Code = "NOT_FOUND"

	// CodeExecutionFailed indicates an external command exited non-zero.
	CodeExecutionFailed Code = "EXECUTION_FAILED"

	// CodeTimeout indicates an external command exceeded its time limit.
	CodeTimeout Code = "TIMEOUT"

	// CodeCleanupFailed indicates a workspace could not be removed.
	CodeCleanupFailed Code = "CLEANUP_FAILED"

	// CodeInternal indicates an unexpected fault.
	CodeInternal Code = "INTERNAL_ERROR"
)
