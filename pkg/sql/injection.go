package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a value
// extracted from user input.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Name        string // Label of the value that failed the check
	Value       string // The value that was checked
}

// CheckValueForInjection uses libinjection to detect SQL injection patterns
// in a value before it is templated into a prompt or carried across turns.
// Returns nil if no injection is detected.
func CheckValueForInjection(name, value string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}

	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		Name:        name,
		Value:       value,
	}
}

// CheckValues screens a set of labeled values and returns every hit.
// An empty result means all values are clean.
func CheckValues(values map[string]string) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for name, value := range values {
		if r := CheckValueForInjection(name, value); r != nil {
			results = append(results, r)
		}
	}
	return results
}
