package skill

import (
	"errors"
	"fmt"
)

var (
	// ErrSSMSecureUnsupported is returned when a credential references an SSM SecureString.
	ErrSSMSecureUnsupported = errors.New("SSM SecureString is not supported, use a Secrets Manager secret instead")
	// ErrRequired is returned when a required prop is empty.
	ErrRequired = errors.New("value is required")
	// ErrAssetPath is returned when the skill package path cannot be packaged.
	ErrAssetPath = errors.New("skill package path must be a readable directory")
)

// InvalidPropError names the prop that failed validation.
type InvalidPropError struct {
	Prop string
	Err  error
}

func (e *InvalidPropError) Error() string {
	return fmt.Sprintf("invalid prop: %s; %v", e.Prop, e.Err)
}

func (e *InvalidPropError) Unwrap() error {
	return e.Err
}
