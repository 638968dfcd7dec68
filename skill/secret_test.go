package skill

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretValueResolve(t *testing.T) {
	tests := []struct {
		name    string
		value   SecretValue
		backend Backend
		want    string
	}{
		{"plain text", PlainText("s3cr3t"), BackendPlainText, "s3cr3t"},
		{
			"secrets manager",
			SecretsManager("/alexa-developer/client-secret", SecretsManagerOptions{}),
			BackendSecretsManager,
			"{{resolve:secretsmanager:/alexa-developer/client-secret:SecretString:::}}",
		},
		{
			"secrets manager json field",
			SecretsManager("alexa", SecretsManagerOptions{JSONField: "refreshToken", VersionStage: "AWSCURRENT"}),
			BackendSecretsManager,
			"{{resolve:secretsmanager:alexa:SecretString:refreshToken:AWSCURRENT:}}",
		},
		{"ssm secure", SSMSecure("/alexa/secret", "2"), BackendSSMSecure, "{{resolve:ssm-secure:/alexa/secret:2}}"},
		{
			"embedded ssm secure",
			PlainText("x-{{resolve:ssm-secure:/alexa/secret:3}}"),
			BackendSSMSecure,
			"x-{{resolve:ssm-secure:/alexa/secret:3}}",
		},
		{"plain ssm reference", PlainText("{{resolve:ssm:/alexa/id:1}}"), BackendPlainText, "{{resolve:ssm:/alexa/id:1}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved := tt.value.Resolve()
			assert.Equal(t, tt.backend, resolved.Backend)
			assert.Equal(t, tt.want, resolved.Value)
		})
	}
}

func TestSecretValueStringIsRedacted(t *testing.T) {
	v := PlainText("s3cr3t")
	assert.NotContains(t, v.String(), "s3cr3t")
	assert.Equal(t, "SecretValue(plaintext)", v.String())
	assert.Equal(t, "SecretValue(ssm-secure)", SSMSecure("x", "1").String())
}
