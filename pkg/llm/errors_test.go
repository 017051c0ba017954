package llm

import (
	"errors"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		errType   ErrorType
		retryable bool
	}{
		{"auth 401", errors.New("status code 401: unauthorized"), ErrorTypeAuth, false},
		{"invalid key", errors.New("Invalid API Key provided"), ErrorTypeAuth, false},
		{"model missing", errors.New("model gpt-5o not found"), ErrorTypeModel, false},
		{"rate limited", errors.New("429 too many requests"), ErrorTypeRateLimit, true},
		{"endpoint 404", errors.New("status code 404"), ErrorTypeEndpoint, false},
		{"refused", errors.New("dial tcp: connection refused"), ErrorTypeEndpoint, true},
		{"deadline", errors.New("context deadline exceeded"), ErrorTypeTimeout, true},
		{"other", errors.New("something odd"), ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if got.Type != tt.errType {
				t.Errorf("type = %s, want %s", got.Type, tt.errType)
			}
			if got.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", got.Retryable, tt.retryable)
			}
			if !errors.Is(got, tt.err) {
				t.Error("expected cause to be wrapped")
			}
		})
	}
}

func TestClassifyError_Nil(t *testing.T) {
	if got := ClassifyError(nil); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestClassifyError_PassesThroughStructured(t *testing.T) {
	orig := NewError(ErrorTypeRateLimit, "rate limited", true, nil)
	if got := ClassifyError(orig); got != orig {
		t.Error("expected structured error to pass through unchanged")
	}
}
