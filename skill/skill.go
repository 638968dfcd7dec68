// Package skill defines an Alexa skill together with the Lambda permission hand-off its
// endpoint needs.
//
// New builds a dependency graph without touching any cloud API. Deploy walks that graph on
// Pulumi: the package role, the package asset and the permission handler become Pulumi
// resources, everything else is rendered into one CloudFormation stack so its DependsOn edges
// are honoured by CloudFormation itself.
package skill

import (
	"github.com/pulumi/pulumi-aws/sdk/v2/go/aws/lambda"
	"github.com/pulumi/pulumi/sdk/v2/go/pulumi"
)

const (
	alexaServicePrincipal         = "alexa-appkit.amazon.com"
	backendLambdaPermissionAction = "lambda:InvokeFunction"

	defaultPermissionHandlerArchive = "./build/lambda-permission-handler.zip"
	permissionHandlerName           = "lambda-permission-handler"
	templateDescription             = "Alexa skill with scoped endpoint permission"
)

// Resource types found in the graph.
const (
	TypeRole              = "AWS::IAM::Role"
	TypeAsset             = "AWS::S3::Object"
	TypeFunction          = "AWS::Lambda::Function"
	TypePermission        = "AWS::Lambda::Permission"
	TypeSkill             = "Alexa::ASK::Skill"
	TypeStatementIDLookup = "Custom::LambdaPermissionStatementId"
	TypeRemovePermission  = "Custom::RemoveLambdaPermission"
	TypeAddPermission     = "Custom::AddLambdaPermission"
)

const (
	// ParamEndpointArn is the stack parameter carrying the endpoint function ARN.
	ParamEndpointArn = "EndpointLambdaFunctionArn"
	// OutputSkillID is the stack output carrying the skill ID.
	OutputSkillID = "SkillId"
	// AttrStatementID is the lookup attribute holding the recovered statement ID.
	AttrStatementID = "StatementId"
)

const (
	attrArn    = "Arn"
	attrBucket = "Bucket"
	attrKey    = "Key"

	propAssumedBy = "AssumedBy"
	propPath      = "Path"
	propKey       = "Key"
	propReaders   = "Readers"
	propArchive   = "Archive"
	propHandler   = "Handler"
	propActions   = "Actions"
	propResource  = "Resource"

	skillPackageProperty  = "SkillPackage"
	skillPackageOverrides = "Overrides"
)

// Node ids.
const (
	IDAskResourceRole          = "AskResourceRole"
	IDSkillPackageAsset        = "SkillPackageAsset"
	IDResource                 = "Resource"
	IDInitialLambdaPermission  = "InitialLambdaPermission"
	IDPermissionHandler        = "LambdaPermissionHandler"
	IDGetPermissionStatementID = "GetLambdaPermissionStatementIdCustomResource"
	IDRemovePermission         = "RemovePermissionCustomResource"
	IDAddPermission            = "AddPermissionCustomResource"
)

// ISkill is an Alexa skill, either managed by this program or imported.
type ISkill interface {
	// SkillID is the ID associated with this skill.
	SkillID() pulumi.StringOutput
}

// Props configures a managed skill.
type Props struct {
	// EndpointLambdaFunction is configured as the skill endpoint. Optional.
	EndpointLambdaFunction *lambda.Function
	// SkillPackagePath is the skill package directory.
	SkillPackagePath string
	// AlexaVendorID is the vendor ID of the Alexa developer account.
	AlexaVendorID string
	// LwaClientID is the Login with Amazon client ID.
	LwaClientID string
	// LwaClientSecret is the secret for LwaClientID.
	LwaClientSecret SecretValue
	// LwaRefreshToken is the Login with Amazon refresh token.
	LwaRefreshToken SecretValue
	// PermissionHandlerArchive is the zip of handlers/lambda-permission. Defaults to
	// ./build/lambda-permission-handler.zip.
	PermissionHandlerArchive string
}

// Skill is a managed Alexa skill that has been built but not deployed.
type Skill struct {
	props Props
	asset asset
	graph *Graph
}

// New validates props and builds the resource graph. Credentials are checked before any node
// is created.
func New(props Props) (*Skill, error) {
	clientSecret, refreshToken, err := validateSecrets(props.LwaClientSecret, props.LwaRefreshToken)
	if err != nil {
		return nil, err
	}

	required := []struct{ prop, value string }{
		{"skillPackagePath", props.SkillPackagePath},
		{"alexaVendorId", props.AlexaVendorID},
		{"lwaClientId", props.LwaClientID},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, &InvalidPropError{Prop: r.prop, Err: ErrRequired}
		}
	}

	pkg, err := newAsset(props.SkillPackagePath)
	if err != nil {
		return nil, &InvalidPropError{Prop: "skillPackagePath", Err: err}
	}

	if props.PermissionHandlerArchive == "" {
		props.PermissionHandlerArchive = defaultPermissionHandlerArchive
	}

	s := &Skill{props: props, asset: pkg, graph: NewGraph()}
	if err := s.build(clientSecret, refreshToken); err != nil {
		return nil, err
	}
	return s, nil
}

// Graph returns the resource graph.
func (s *Skill) Graph() *Graph {
	return s.graph
}

// HasEndpoint reports whether the permission hand-off is part of the graph.
func (s *Skill) HasEndpoint() bool {
	return s.props.EndpointLambdaFunction != nil
}

// Template renders the CloudFormation part of the graph with the skill ID as an output.
func (s *Skill) Template() (*Template, error) {
	return s.graph.Template(templateDescription, map[string]interface{}{
		OutputSkillID: Ref{Node: IDResource},
	})
}

func (s *Skill) build(clientSecret, refreshToken ResolvedSecret) error {
	g := s.graph

	// Role giving the skill resource read-only access to the package asset.
	if _, err := g.Add(&Node{
		ID:   IDAskResourceRole,
		Type: TypeRole,
		Host: HostPulumi,
		Properties: map[string]interface{}{
			propAssumedBy: alexaServicePrincipal,
		},
	}); err != nil {
		return err
	}

	if _, err := g.Add(&Node{
		ID:   IDSkillPackageAsset,
		Type: TypeAsset,
		Host: HostPulumi,
		Properties: map[string]interface{}{
			propPath:    s.asset.path,
			propKey:     s.asset.key(),
			propReaders: []interface{}{Ref{Node: IDAskResourceRole}},
		},
	}); err != nil {
		return err
	}

	if _, err := g.Add(&Node{
		ID:         IDResource,
		Type:       TypeSkill,
		Host:       HostTemplate,
		Properties: skillProperties(s.props, clientSecret, refreshToken),
	}); err != nil {
		return err
	}

	if !s.HasEndpoint() {
		return nil
	}
	return s.buildPermissionHandOff()
}

func skillProperties(props Props, clientSecret, refreshToken ResolvedSecret) map[string]interface{} {
	skillPackage := map[string]interface{}{
		"S3Bucket":     Attr{Node: IDSkillPackageAsset, Name: attrBucket},
		"S3Key":        Attr{Node: IDSkillPackageAsset, Name: attrKey},
		"S3BucketRole": Attr{Node: IDAskResourceRole, Name: attrArn},
	}
	// The override is left out entirely when there is no endpoint.
	if props.EndpointLambdaFunction != nil {
		skillPackage[skillPackageOverrides] = map[string]interface{}{
			"Manifest": map[string]interface{}{
				"apis": map[string]interface{}{
					"custom": map[string]interface{}{
						"endpoint": map[string]interface{}{
							"uri": Param{Name: ParamEndpointArn},
						},
					},
				},
			},
		}
	}

	return map[string]interface{}{
		"VendorId":           props.AlexaVendorID,
		skillPackageProperty: skillPackage,
		"AuthenticationConfiguration": map[string]interface{}{
			"ClientId":     props.LwaClientID,
			"ClientSecret": clientSecret.Value,
			"RefreshToken": refreshToken.Value,
		},
	}
}

// buildPermissionHandOff adds the placeholder permission the skill needs to pass endpoint
// validation, then the lookup, remove and add steps that replace it with a permission scoped
// to the skill ID.
func (s *Skill) buildPermissionHandOff() error {
	g := s.graph
	endpoint := Param{Name: ParamEndpointArn}
	skillID := Ref{Node: IDResource}
	serviceToken := Attr{Node: IDPermissionHandler, Name: attrArn}
	statementID := Attr{Node: IDGetPermissionStatementID, Name: AttrStatementID}

	nodes := []*Node{
		{
			ID:   IDInitialLambdaPermission,
			Type: TypePermission,
			Host: HostTemplate,
			Properties: map[string]interface{}{
				"FunctionName": endpoint,
				"Principal":    alexaServicePrincipal,
				"Action":       backendLambdaPermissionAction,
			},
		},
		{
			ID:   IDPermissionHandler,
			Type: TypeFunction,
			Host: HostPulumi,
			Properties: map[string]interface{}{
				propHandler: permissionHandlerName,
				propArchive: s.props.PermissionHandlerArchive,
				propActions: []interface{}{
					"lambda:GetPolicy",
					"lambda:RemovePermission",
					"lambda:AddPermission",
				},
				propResource: endpoint,
			},
		},
		{
			ID:   IDGetPermissionStatementID,
			Type: TypeStatementIDLookup,
			Host: HostTemplate,
			Properties: map[string]interface{}{
				"ServiceToken":            serviceToken,
				"LambdaFunctionArn":       endpoint,
				"ServicePrincipalToMatch": alexaServicePrincipal,
				"ActionToMatch":           backendLambdaPermissionAction,
			},
		},
		{
			ID:   IDRemovePermission,
			Type: TypeRemovePermission,
			Host: HostTemplate,
			Properties: map[string]interface{}{
				"ServiceToken": serviceToken,
				"FunctionName": endpoint,
				"StatementId":  statementID,
				"SkillId":      skillID,
			},
		},
		{
			ID:   IDAddPermission,
			Type: TypeAddPermission,
			Host: HostTemplate,
			Properties: map[string]interface{}{
				"ServiceToken":     serviceToken,
				"FunctionName":     endpoint,
				"StatementId":      statementID,
				"Principal":        alexaServicePrincipal,
				"Action":           backendLambdaPermissionAction,
				"EventSourceToken": skillID,
				"SkillId":          skillID,
			},
		},
	}
	for _, node := range nodes {
		if _, err := g.Add(node); err != nil {
			return err
		}
	}

	edges := []struct{ from, to string }{
		// The skill validates that the endpoint already grants Alexa invoke access.
		{IDResource, IDInitialLambdaPermission},
		{IDGetPermissionStatementID, IDInitialLambdaPermission},
		{IDGetPermissionStatementID, IDResource},
		// Removing before the skill exists would fail endpoint validation, and on delete the
		// scoped permission must go before the skill.
		{IDRemovePermission, IDResource},
		{IDRemovePermission, IDGetPermissionStatementID},
		// Adding before the remove would collide on the statement ID.
		{IDAddPermission, IDRemovePermission},
	}
	for _, e := range edges {
		if err := g.AddDependency(e.from, e.to); err != nil {
			return err
		}
	}

	return g.Validate()
}

type importedSkill struct {
	skillID string
}

func (s importedSkill) SkillID() pulumi.StringOutput {
	return pulumi.String(s.skillID).ToStringOutput()
}

// FromSkillID references a skill defined elsewhere. Nothing is created or validated.
func FromSkillID(skillID string) ISkill {
	return importedSkill{skillID: skillID}
}
