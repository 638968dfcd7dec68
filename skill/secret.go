package skill

import (
	"fmt"
	"strings"
)

// Backend identifies where a secret is stored.
type Backend int

const (
	// BackendPlainText is a value embedded as-is in the template.
	BackendPlainText Backend = iota
	// BackendSecretsManager is a Secrets Manager dynamic reference.
	BackendSecretsManager
	// BackendSSMSecure is an SSM Parameter Store SecureString dynamic reference.
	BackendSSMSecure
)

func (b Backend) String() string {
	switch b {
	case BackendSecretsManager:
		return "secretsmanager"
	case BackendSSMSecure:
		return "ssm-secure"
	default:
		return "plaintext"
	}
}

const (
	ssmSecureReferencePrefix      = "{{resolve:ssm-secure:"
	secretsManagerReferencePrefix = "{{resolve:secretsmanager:"
)

// SecretValue is a deferred credential. It holds an opaque reference that is only turned into
// a concrete value by Resolve.
type SecretValue struct {
	ref string
}

// PlainText returns a secret embedded in clear text.
func PlainText(value string) SecretValue {
	return SecretValue{ref: value}
}

// SecretsManagerOptions selects which part of a Secrets Manager secret is referenced.
type SecretsManagerOptions struct {
	JSONField    string
	VersionStage string
	VersionID    string
}

// SecretsManager references a Secrets Manager secret by name or ARN.
func SecretsManager(secretID string, opts SecretsManagerOptions) SecretValue {
	return SecretValue{ref: fmt.Sprintf("{{resolve:secretsmanager:%s:SecretString:%s:%s:%s}}",
		secretID, opts.JSONField, opts.VersionStage, opts.VersionID)}
}

// SSMSecure references an SSM SecureString parameter. Alexa skills do not accept these; it
// exists so callers get a clear error instead of a failed deployment.
func SSMSecure(name, version string) SecretValue {
	return SecretValue{ref: fmt.Sprintf("{{resolve:ssm-secure:%s:%s}}", name, version)}
}

// ResolvedSecret is the concrete form of a SecretValue.
type ResolvedSecret struct {
	Backend Backend
	Value   string
}

// Resolve renders the reference and tags it with its backend. CloudFormation resolves dynamic
// references anywhere inside a string, so an SSM SecureString reference embedded in any value
// tags it BackendSSMSecure.
func (v SecretValue) Resolve() ResolvedSecret {
	resolved := ResolvedSecret{Backend: BackendPlainText, Value: v.ref}
	switch {
	case strings.Contains(v.ref, ssmSecureReferencePrefix):
		resolved.Backend = BackendSSMSecure
	case strings.HasPrefix(v.ref, secretsManagerReferencePrefix):
		resolved.Backend = BackendSecretsManager
	}
	return resolved
}

// IsZero reports whether no reference was set.
func (v SecretValue) IsZero() bool {
	return v.ref == ""
}

// String never reveals the value.
func (v SecretValue) String() string {
	return "SecretValue(" + v.Resolve().Backend.String() + ")"
}

// validateSecrets runs before anything is added to the graph.
func validateSecrets(clientSecret, refreshToken SecretValue) (ResolvedSecret, ResolvedSecret, error) {
	secrets := []struct {
		prop  string
		value SecretValue
	}{
		{"lwaClientSecret", clientSecret},
		{"lwaRefreshToken", refreshToken},
	}

	resolved := make([]ResolvedSecret, len(secrets))
	for i, s := range secrets {
		if s.value.IsZero() {
			return ResolvedSecret{}, ResolvedSecret{}, &InvalidPropError{Prop: s.prop, Err: ErrRequired}
		}
		resolved[i] = s.value.Resolve()
		if resolved[i].Backend == BackendSSMSecure {
			return ResolvedSecret{}, ResolvedSecret{}, &InvalidPropError{Prop: s.prop, Err: ErrSSMSecureUnsupported}
		}
	}

	return resolved[0], resolved[1], nil
}
