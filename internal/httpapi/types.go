package httpapi

import (
	"strings"

	"github.com/rafaeljc/heimdall-evaluator/internal/ruleengine"
)

// Error codes returned in ErrorResponse.Code.
const (
	codeInvalidJSON  = "ERR_INVALID_JSON"
	codeInvalidInput = "ERR_INVALID_INPUT"
	codeUnauthorized = "ERR_UNAUTHORIZED"
	codeNotReady     = "ERR_NOT_READY"
	codeTooLarge     = "ERR_PAYLOAD_TOO_LARGE"
	codeInternal     = "ERR_INTERNAL"
)

// EvaluateRequest is the payload of POST /api/v1/evaluate.
type EvaluateRequest struct {
	// Flag is the name of the flag to evaluate.
	Flag string `json:"flag"`

	// Key is the matching key (usually a user or account id).
	Key string `json:"key"`

	// BucketingKey overrides Key for hashing into partitions. Optional.
	BucketingKey string `json:"bucketingKey,omitempty"`

	// Attributes are the evaluation-time attributes targeted by matchers.
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Sanitize trims whitespace from identifiers.
func (r *EvaluateRequest) Sanitize() {
	r.Flag = strings.TrimSpace(r.Flag)
	r.Key = strings.TrimSpace(r.Key)
	r.BucketingKey = strings.TrimSpace(r.BucketingKey)
}

// Validate checks that the request names a flag.
func (r *EvaluateRequest) Validate() *ErrorResponse {
	if r.Flag == "" {
		return &ErrorResponse{Code: codeInvalidInput, Message: "Flag is required"}
	}
	return nil
}

// BatchEvaluateRequest is the payload of POST /api/v1/evaluate/batch.
type BatchEvaluateRequest struct {
	Flags        []string       `json:"flags"`
	Key          string         `json:"key"`
	BucketingKey string         `json:"bucketingKey,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
}

// Sanitize trims whitespace from identifiers.
func (r *BatchEvaluateRequest) Sanitize() {
	r.Key = strings.TrimSpace(r.Key)
	r.BucketingKey = strings.TrimSpace(r.BucketingKey)
}

// Validate enforces the batch size bounds.
func (r *BatchEvaluateRequest) Validate(maxBatchSize int) *ErrorResponse {
	if len(r.Flags) == 0 {
		return &ErrorResponse{Code: codeInvalidInput, Message: "At least one flag is required"}
	}
	if len(r.Flags) > maxBatchSize {
		return &ErrorResponse{
			Code:    codeInvalidInput,
			Message: "Too many flags in one batch",
			Details: []ErrorDetail{{Field: "flags", Issue: "exceeds maximum batch size"}},
		}
	}
	return nil
}

// SetEvaluateRequest is the payload of POST /api/v1/evaluate/sets/{set}.
type SetEvaluateRequest struct {
	Key          string         `json:"key"`
	BucketingKey string         `json:"bucketingKey,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
}

// Sanitize trims whitespace from identifiers.
func (r *SetEvaluateRequest) Sanitize() {
	r.Key = strings.TrimSpace(r.Key)
	r.BucketingKey = strings.TrimSpace(r.BucketingKey)
}

// BatchResponse wraps the results of a multi-flag evaluation.
type BatchResponse struct {
	Results map[string]ruleengine.Result `json:"results"`
}

// FlagListResponse lists the flags of the live snapshot.
type FlagListResponse struct {
	Flags   []string `json:"flags"`
	Version string   `json:"version"`
}

// ErrorResponse represents a standard structured API error.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g., "ERR_INVALID_INPUT").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`

	// Details provides optional granular validation errors.
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail provides context about specific field validation failures.
type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

func keyOf(matching, bucketing string) ruleengine.Key {
	return ruleengine.Key{Matching: matching, Bucketing: bucketing}
}
