package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation / configuration errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidDate          ErrorCode = 102
	ErrCodeInvalidGranularity   ErrorCode = 103
	ErrCodeMissingParameter     ErrorCode = 104
	ErrCodeInvalidRequest       ErrorCode = 105
	ErrCodeInvalidProvider      ErrorCode = 106

	// Status store errors (200-299)
	ErrCodeStatusReadFailed  ErrorCode = 200
	ErrCodeStatusWriteFailed ErrorCode = 201
	ErrCodeStatusInvariant   ErrorCode = 202

	// Normalization errors (300-399)
	ErrCodeMissingBaseline       ErrorCode = 300
	ErrCodeBaselinePersistFailed ErrorCode = 301
	ErrCodeBaselineLoadFailed    ErrorCode = 302

	// Market data errors (700-799)
	ErrCodeConnectionFailed      ErrorCode = 700
	ErrCodeAuthFailed            ErrorCode = 701
	ErrCodeMarketDataFetchFailed ErrorCode = 702
	ErrCodeMarketDataWriteFailed ErrorCode = 703
	ErrCodeMarketDataParseFailed ErrorCode = 704
	ErrCodeContractNotFound      ErrorCode = 705
	ErrCodeUnsupportedWhatToShow ErrorCode = 706
	ErrCodeProviderNotConnected  ErrorCode = 707
)

// IsConfigError reports whether the code belongs to the validation/configuration range.
// Config errors are fatal to a single download request only.
func (c ErrorCode) IsConfigError() bool {
	return c >= 100 && c < 200
}

// IsConnectionError reports whether the code means the provider could not be reached or authenticated.
func (c ErrorCode) IsConnectionError() bool {
	return c == ErrCodeConnectionFailed || c == ErrCodeAuthFailed
}
