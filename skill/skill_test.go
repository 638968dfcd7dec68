package skill

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pulumi/pulumi-aws/sdk/v2/go/aws/lambda"
	"github.com/pulumi/pulumi/sdk/v2/go/pulumi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	dummyVendorID     = "dummy-vendor-id"
	dummyClientID     = "dummy-client-id"
	dummyClientSecret = "dummy-client-secret"
	dummyRefreshToken = "dummy-refresh-token"
)

func dummySkillPackage(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "interactionModels", "custom"), 0o755))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "skill.json"), []byte(`{"manifest":{}}`), 0o644))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "interactionModels", "custom", "en-US.json"), []byte(`{}`), 0o644))
	return dir
}

func testProps(t *testing.T, hasLambdaEndpoint bool) Props {
	props := Props{
		SkillPackagePath: dummySkillPackage(t),
		AlexaVendorID:    dummyVendorID,
		LwaClientID:      dummyClientID,
		LwaClientSecret:  PlainText(dummyClientSecret),
		LwaRefreshToken:  PlainText(dummyRefreshToken),
	}
	if hasLambdaEndpoint {
		props.EndpointLambdaFunction = &lambda.Function{}
	}
	return props
}

func skillPackage(t *testing.T, s *Skill) map[string]interface{} {
	node := s.Graph().Node(IDResource)
	require.NotNil(t, node)
	pkg, ok := node.Properties[skillPackageProperty].(map[string]interface{})
	require.True(t, ok)
	return pkg
}

func awaitString(t *testing.T, out pulumi.StringOutput) string {
	ch := make(chan string, 1)
	out.ApplyT(func(v string) string {
		ch <- v
		return v
	})
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("output never resolved")
		return ""
	}
}

func TestSkillWithLambdaEndpoint(t *testing.T) {
	s, err := New(testProps(t, true))
	require.NoError(t, err)
	g := s.Graph()

	t.Run("creates a Skill with Overrides property", func(t *testing.T) {
		node := g.Node(IDResource)
		assert.Equal(t, TypeSkill, node.Type)
		assert.Equal(t, dummyVendorID, node.Properties["VendorId"])
		assert.Equal(t, map[string]interface{}{
			"ClientId":     dummyClientID,
			"ClientSecret": dummyClientSecret,
			"RefreshToken": dummyRefreshToken,
		}, node.Properties["AuthenticationConfiguration"])

		pkg := skillPackage(t, s)
		assert.Equal(t, map[string]interface{}{
			"Manifest": map[string]interface{}{
				"apis": map[string]interface{}{
					"custom": map[string]interface{}{
						"endpoint": map[string]interface{}{
							"uri": Param{Name: ParamEndpointArn},
						},
					},
				},
			},
		}, pkg[skillPackageOverrides])
		assert.Equal(t, Attr{Node: IDSkillPackageAsset, Name: attrBucket}, pkg["S3Bucket"])
		assert.Equal(t, Attr{Node: IDSkillPackageAsset, Name: attrKey}, pkg["S3Key"])
		assert.Equal(t, Attr{Node: IDAskResourceRole, Name: attrArn}, pkg["S3BucketRole"])
	})

	t.Run("creates custom resources", func(t *testing.T) {
		assert.Equal(t, 1, g.Count(TypeStatementIDLookup))
		assert.Equal(t, 2, g.Count(TypeRemovePermission)+g.Count(TypeAddPermission))
		assert.Equal(t, 1, g.Count(TypeFunction))
	})

	t.Run("creates a proper Lambda Permission", func(t *testing.T) {
		require.Equal(t, 1, g.Count(TypePermission))
		node := g.Node(IDInitialLambdaPermission)
		assert.Equal(t, map[string]interface{}{
			"FunctionName": Param{Name: ParamEndpointArn},
			"Principal":    "alexa-appkit.amazon.com",
			"Action":       "lambda:InvokeFunction",
		}, node.Properties)
	})

	t.Run("scopes the final permission to the skill", func(t *testing.T) {
		node := g.Node(IDAddPermission)
		assert.Equal(t, Ref{Node: IDResource}, node.Properties["EventSourceToken"])
		assert.Equal(t, Attr{Node: IDGetPermissionStatementID, Name: AttrStatementID}, node.Properties["StatementId"])
		assert.Equal(t, node.Properties["StatementId"], g.Node(IDRemovePermission).Properties["StatementId"])
	})

	t.Run("orders the permission hand-off", func(t *testing.T) {
		assert.False(t, g.DependsOn(IDInitialLambdaPermission, IDResource))
		assert.Contains(t, g.Dependencies(IDResource), IDInitialLambdaPermission)
		for _, id := range []string{IDGetPermissionStatementID, IDRemovePermission, IDAddPermission} {
			assert.True(t, g.DependsOn(id, IDResource), id)
		}
		assert.Contains(t, g.Dependencies(IDRemovePermission), IDGetPermissionStatementID)
		assert.Contains(t, g.Dependencies(IDAddPermission), IDRemovePermission)
		assert.True(t, g.DependsOn(IDGetPermissionStatementID, IDInitialLambdaPermission))

		ordered, err := g.Order()
		require.NoError(t, err)
		position := map[string]int{}
		for i, node := range ordered {
			position[node.ID] = i
		}
		assert.Less(t, position[IDInitialLambdaPermission], position[IDResource])
		assert.Less(t, position[IDResource], position[IDGetPermissionStatementID])
		assert.Less(t, position[IDGetPermissionStatementID], position[IDRemovePermission])
		assert.Less(t, position[IDRemovePermission], position[IDAddPermission])
	})
}

func TestSkillWithNoLambdaEndpoint(t *testing.T) {
	s, err := New(testProps(t, false))
	require.NoError(t, err)
	g := s.Graph()

	t.Run("creates a Skill with no Overrides property", func(t *testing.T) {
		_, ok := skillPackage(t, s)[skillPackageOverrides]
		assert.False(t, ok)
	})

	t.Run("does not create custom resources", func(t *testing.T) {
		assert.Equal(t, 0, g.Count(TypeStatementIDLookup))
		assert.Equal(t, 0, g.Count(TypeRemovePermission))
		assert.Equal(t, 0, g.Count(TypeAddPermission))
		assert.Equal(t, 0, g.Count(TypeFunction))
	})

	t.Run("does not create a Lambda Permission", func(t *testing.T) {
		assert.Equal(t, 0, g.Count(TypePermission))
	})

	t.Run("keeps the package role and asset", func(t *testing.T) {
		assert.Equal(t, 1, g.Count(TypeRole))
		assert.Equal(t, 1, g.Count(TypeAsset))
		assert.Equal(t, []interface{}{Ref{Node: IDAskResourceRole}}, g.Node(IDSkillPackageAsset).Properties[propReaders])
	})
}

func TestSkillRejectsSSMSecureString(t *testing.T) {
	tests := []struct {
		name         string
		clientSecret SecretValue
		refreshToken SecretValue
		prop         string
	}{
		{
			name:         "lwaClientSecret",
			clientSecret: SSMSecure(dummyClientSecret, "1"),
			refreshToken: SecretsManager(dummyRefreshToken, SecretsManagerOptions{}),
			prop:         "lwaClientSecret",
		},
		{
			name:         "lwaRefreshToken",
			clientSecret: SecretsManager(dummyClientSecret, SecretsManagerOptions{}),
			refreshToken: SSMSecure(dummyRefreshToken, "1"),
			prop:         "lwaRefreshToken",
		},
		{
			name:         "dynamic reference passed as plain text",
			clientSecret: PlainText("{{resolve:ssm-secure:/alexa/secret:3}}"),
			refreshToken: PlainText(dummyRefreshToken),
			prop:         "lwaClientSecret",
		},
		{
			name:         "dynamic reference embedded in a longer value",
			clientSecret: PlainText(dummyClientSecret),
			refreshToken: PlainText("x-{{resolve:ssm-secure:/alexa/token:3}}"),
			prop:         "lwaRefreshToken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props := testProps(t, true)
			props.LwaClientSecret = tt.clientSecret
			props.LwaRefreshToken = tt.refreshToken

			s, err := New(props)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.True(t, errors.Is(err, ErrSSMSecureUnsupported))

			var propErr *InvalidPropError
			require.True(t, errors.As(err, &propErr))
			assert.Equal(t, tt.prop, propErr.Prop)
			assert.Contains(t, err.Error(), "invalid prop: "+tt.prop)
		})
	}
}

func TestSkillChecksSecretsBeforeThePackage(t *testing.T) {
	props := testProps(t, false)
	props.SkillPackagePath = filepath.Join(t.TempDir(), "missing")
	props.LwaRefreshToken = SSMSecure(dummyRefreshToken, "1")

	_, err := New(props)
	assert.True(t, errors.Is(err, ErrSSMSecureUnsupported))
}

func TestSkillRequiredProps(t *testing.T) {
	tests := []struct {
		prop   string
		mutate func(*Props)
		cause  error
	}{
		{"skillPackagePath", func(p *Props) { p.SkillPackagePath = "" }, ErrRequired},
		{"alexaVendorId", func(p *Props) { p.AlexaVendorID = "" }, ErrRequired},
		{"lwaClientId", func(p *Props) { p.LwaClientID = "" }, ErrRequired},
		{"lwaClientSecret", func(p *Props) { p.LwaClientSecret = SecretValue{} }, ErrRequired},
		{"skillPackagePath", func(p *Props) { p.SkillPackagePath = "/does/not/exist" }, ErrAssetPath},
	}

	for _, tt := range tests {
		t.Run(tt.prop, func(t *testing.T) {
			props := testProps(t, false)
			tt.mutate(&props)

			_, err := New(props)
			var propErr *InvalidPropError
			require.True(t, errors.As(err, &propErr))
			assert.Equal(t, tt.prop, propErr.Prop)
			assert.True(t, errors.Is(err, tt.cause))
		})
	}
}

func TestSkillDefaultsThePermissionHandlerArchive(t *testing.T) {
	s, err := New(testProps(t, true))
	require.NoError(t, err)
	assert.Equal(t, defaultPermissionHandlerArchive, s.Graph().Node(IDPermissionHandler).Properties[propArchive])
}

func TestFromSkillID(t *testing.T) {
	t.Run("has the same skill ID as it was imported with", func(t *testing.T) {
		skillID := "amzn1.ask.skill.abcdef12-3456-7890-abcd-ef1234567890"
		s := FromSkillID(skillID)
		assert.Equal(t, skillID, awaitString(t, s.SkillID()))
	})
}
