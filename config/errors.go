package config

import "fmt"

// NotYetConfiguredError is returned when a configuration name is looked up
// before it was registered.
type NotYetConfiguredError struct {
	Name string
}

func (e *NotYetConfiguredError) Error() string {
	if e.Name == "" {
		return "secure headers are not configured, call Default first"
	}
	return fmt.Sprintf("configuration %q has not been registered", e.Name)
}

// IllegalPolicyModificationError is returned when a CSP that was changed
// through AppendCSP or OverrideCSP is replaced directly.
type IllegalPolicyModificationError struct {
	Msg string
}

func (e *IllegalPolicyModificationError) Error() string {
	return e.Msg
}
