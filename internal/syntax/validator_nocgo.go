//go:build !cgo

package syntax

// Validator reports syntax errors. Without cgo no grammar is available.
type Validator struct{}

// NewValidator creates a validator (no-op without cgo).
func NewValidator() *Validator {
	return &Validator{}
}

// Available reports whether syntax validation is compiled in.
func (v *Validator) Available() bool { return false }

// SupportsLanguage always returns false without cgo.
func (v *Validator) SupportsLanguage(language string) bool {
	return false
}

// Validate always fails with ErrUnavailable without cgo.
func (v *Validator) Validate(code, language string) (*ValidationResult, error) {
	return nil, ErrUnavailable
}
