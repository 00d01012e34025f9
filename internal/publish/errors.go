package publish

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/storypilot/scheduler/internal/models"
)

// ValidationError marks media or input the provider would never accept.
// It is permanent and consumes no retry budget.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// AuthError marks missing or rejected credentials. Permanent; the user has
// to re-connect the account.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "authorization failed: " + e.Reason
}

// ProviderError is a failed call to the Snapchat content API. Stage records
// which half of the publish failed, so an upload that succeeded followed by
// a failed story attach is reported distinctly.
type ProviderError struct {
	Stage      string // "upload" or "attach"
	StatusCode int    // 0 when the request never completed
	Message    string
	Response   string
	Permanent  bool // provider explicitly flagged the failure as final
}

const (
	StageUpload = "upload"
	StageAttach = "attach"
)

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("snapchat %s failed: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("snapchat %s failed with status %d: %s", e.Stage, e.StatusCode, e.Message)
}

// Transient reports whether the failure is worth retrying: network errors,
// rate limiting, and provider 5xx. Semantic 4xx responses are permanent.
func (e *ProviderError) Transient() bool {
	if e.Permanent {
		return false
	}
	if e.StatusCode == 0 {
		return true
	}
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return e.StatusCode >= 500
}

// IsTransient classifies any publish pipeline error for the retry handler.
func IsTransient(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return false
	}

	var ae *AuthError
	if errors.As(err, &ae) {
		return false
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient()
	}

	// Unclassified errors are treated as transient so a provider hiccup the
	// taxonomy missed still gets its retries.
	return true
}

// Outcome maps an attempt error to the publish log outcome value.
func Outcome(err error) string {
	if err == nil {
		return models.OutcomeSuccess
	}
	if IsTransient(err) {
		return models.OutcomeTransientError
	}
	return models.OutcomePermanentError
}
