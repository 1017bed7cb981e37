package model

import (
	"fmt"
)

// ConfigurationError reports missing credentials or voice mappings. It is
// raised before a job starts or at the first phase that needs the setting.
type ConfigurationError struct {
	Setting string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Setting, e.Message)
}

// ProviderError wraps a failed remote call
type ProviderError struct {
	Provider   string
	Operation  string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed with status %d: %v", e.Provider, e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Operation, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth another attempt
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// ParseError reports a script response that does not match the expected schema
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse script: %s: %v", e.Reason, e.Err)
	}
	return "parse script: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// MasteringError reports that no track could be assembled
type MasteringError struct {
	Skipped int
	Err     error
}

func (e *MasteringError) Error() string {
	return fmt.Sprintf("mastering failed (%d clips skipped): %v", e.Skipped, e.Err)
}

func (e *MasteringError) Unwrap() error { return e.Err }

// IOError reports a failed write of a job artifact
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
