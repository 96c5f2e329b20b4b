package sanitize

import (
	"fmt"
	"path"
	"strings"
)

// Default content-length floors for the named validation policies.
const (
	DefaultReadmeMinLength  = 50
	DefaultLicenseMinLength = 200
)

// ValidationResult is the structured outcome of validating a file's content.
// Validation never fails with an error value; problems are reported inside
// the result.
type ValidationResult struct {
	Valid          bool     `json:"valid"`
	Errors         []string `json:"errors"`
	Warnings       []string `json:"warnings"`
	CleanedContent string   `json:"cleanedContent,omitempty"`
}

// Validator applies filename-specific validation policies on top of the
// placeholder engine.
type Validator struct {
	readmeMinLength  int
	licenseMinLength int
}

// NewValidator creates a Validator with the given policy floors. Non-positive
// floors fall back to the defaults.
func NewValidator(readmeMinLength, licenseMinLength int) *Validator {
	if readmeMinLength <= 0 {
		readmeMinLength = DefaultReadmeMinLength
	}
	if licenseMinLength <= 0 {
		licenseMinLength = DefaultLicenseMinLength
	}
	return &Validator{
		readmeMinLength:  readmeMinLength,
		licenseMinLength: licenseMinLength,
	}
}

// Validate runs placeholder detection over content and applies the policy
// selected by filename: README-like files need a minimum amount of cleaned
// content, LICENSE-like files need a larger floor (a short license is
// incomplete by definition, not placeholder-bearing), and everything else
// only needs to be non-empty after cleaning.
func (v *Validator) Validate(filename, content string) ValidationResult {
	result := ValidationResult{
		Errors:   []string{},
		Warnings: []string{},
	}

	detection := Detect(content)
	result.CleanedContent = detection.CleanedText
	cleaned := strings.TrimSpace(detection.CleanedText)

	if detection.HadMatches {
		for _, id := range detection.MatchedPatternIDs {
			if patternWarns(id) {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("placeholder content removed: %s", id))
			}
		}
	}

	if cleaned == "" {
		result.Errors = append(result.Errors, "content is empty after removing placeholders")
		return result
	}

	switch classify(filename) {
	case policyReadme:
		if len(cleaned) < v.readmeMinLength {
			result.Errors = append(result.Errors,
				fmt.Sprintf("README content too short: %d characters after cleaning, need at least %d",
					len(cleaned), v.readmeMinLength))
		}
	case policyLicense:
		if len(cleaned) < v.licenseMinLength {
			result.Errors = append(result.Errors,
				fmt.Sprintf("license text too short to be complete: %d characters, need at least %d",
					len(cleaned), v.licenseMinLength))
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

type policy int

const (
	policyGeneric policy = iota
	policyReadme
	policyLicense
)

// classify maps a filename onto a validation policy by its base name.
func classify(filename string) policy {
	base := strings.ToUpper(path.Base(filename))
	switch {
	case strings.HasPrefix(base, "README"):
		return policyReadme
	case strings.HasPrefix(base, "LICENSE"), strings.HasPrefix(base, "COPYING"):
		return policyLicense
	default:
		return policyGeneric
	}
}

func patternWarns(id string) bool {
	for _, p := range patterns {
		if p.ID == id {
			return p.Warn
		}
	}
	return false
}
