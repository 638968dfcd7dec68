package skill

import (
	"fmt"
	"strings"

	"github.com/pulumi/pulumi-aws/sdk/v2/go/aws/cloudformation"
	"github.com/pulumi/pulumi-aws/sdk/v2/go/aws/iam"
	"github.com/pulumi/pulumi-aws/sdk/v2/go/aws/s3"
	"github.com/pulumi/pulumi/sdk/v2/go/pulumi"
)

const componentType = "alexa:skill:Skill"

// Deployment is a managed skill provisioned on Pulumi.
type Deployment struct {
	pulumi.ResourceState

	// Stack runs the skill and the permission hand-off.
	Stack *cloudformation.Stack

	skillID pulumi.StringOutput
}

// SkillID is the ID CloudFormation assigned to the skill.
func (d *Deployment) SkillID() pulumi.StringOutput {
	return d.skillID
}

// Deploy provisions the graph as a component named name. Pulumi-hosted nodes are created in
// dependency order, then the CloudFormation stack is created after all of them with their
// outputs passed in as stack parameters.
func (s *Skill) Deploy(ctx *pulumi.Context, name string, opts ...pulumi.ResourceOption) (*Deployment, error) {
	d := &Deployment{}
	if err := ctx.RegisterComponentResource(componentType, name, d, opts...); err != nil {
		return nil, err
	}

	ordered, err := s.graph.Order()
	if err != nil {
		return nil, err
	}

	m := &materializer{
		ctx:    ctx,
		name:   name,
		skill:  s,
		parent: d,
		values: map[string]map[string]pulumi.StringOutput{},
		roles:  map[string]*iam.Role{},
	}
	for _, node := range ordered {
		if node.Host != HostPulumi {
			continue
		}
		ctx.Log.Debug(fmt.Sprintf("provisioning %s (%s)", node.ID, node.Type), &pulumi.LogArgs{Resource: d})
		if err := m.provision(node); err != nil {
			return nil, fmt.Errorf("provision %s: %w", node.ID, err)
		}
	}

	tmpl, err := s.Template()
	if err != nil {
		return nil, err
	}
	body, err := tmpl.JSON()
	if err != nil {
		return nil, err
	}

	parameters := pulumi.StringMap{}
	for param, binding := range tmpl.Bindings {
		value, err := m.resolve(binding)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", param, err)
		}
		parameters[param] = value
	}

	stack, err := cloudformation.NewStack(ctx, resourceName(name, "stack"), &cloudformation.StackArgs{
		TemplateBody: pulumi.String(string(body)),
		Parameters:   parameters,
	}, pulumi.Parent(d), pulumi.DependsOn(m.resources))
	if err != nil {
		return nil, err
	}

	d.Stack = stack
	d.skillID = stack.Outputs.MapIndex(pulumi.String(OutputSkillID))

	if err := ctx.RegisterResourceOutputs(d, pulumi.Map{
		"skillId": d.skillID,
	}); err != nil {
		return nil, err
	}

	ctx.Log.Info(fmt.Sprintf("skill %s: %d resources, endpoint hand-off %t",
		name, len(ordered), s.HasEndpoint()), &pulumi.LogArgs{Resource: d})

	return d, nil
}

type materializer struct {
	ctx    *pulumi.Context
	name   string
	skill  *Skill
	parent pulumi.Resource

	bucket    *s3.Bucket
	values    map[string]map[string]pulumi.StringOutput
	roles     map[string]*iam.Role
	resources []pulumi.Resource
}

func resourceName(name, id string) string {
	return fmt.Sprintf("%s-%s", name, strings.ToLower(id))
}

func (m *materializer) provision(node *Node) error {
	switch node.Type {
	case TypeRole:
		return m.role(node)
	case TypeAsset:
		return m.asset(node)
	case TypeFunction:
		return m.function(node)
	default:
		return fmt.Errorf("no Pulumi provisioner for %s", node.Type)
	}
}

func (m *materializer) set(id, attr string, value pulumi.StringOutput) {
	if m.values[id] == nil {
		m.values[id] = map[string]pulumi.StringOutput{}
	}
	m.values[id][attr] = value
}

// resolve turns a reference into the Pulumi output that carries its value.
func (m *materializer) resolve(ref interface{}) (pulumi.StringOutput, error) {
	switch ref := ref.(type) {
	case Param:
		if ref.Name == ParamEndpointArn && m.skill.props.EndpointLambdaFunction != nil {
			return m.skill.props.EndpointLambdaFunction.Arn, nil
		}
		return pulumi.StringOutput{}, fmt.Errorf("no value for parameter %s", ref.Name)
	case Ref:
		if v, ok := m.values[ref.Node]["Ref"]; ok {
			return v, nil
		}
		return pulumi.StringOutput{}, fmt.Errorf("%w: %s has not been provisioned", ErrUnknownNode, ref.Node)
	case Attr:
		if v, ok := m.values[ref.Node][ref.Name]; ok {
			return v, nil
		}
		return pulumi.StringOutput{}, fmt.Errorf("%w: %s.%s has not been provisioned", ErrUnknownNode, ref.Node, ref.Name)
	case string:
		return pulumi.String(ref).ToStringOutput(), nil
	default:
		return pulumi.StringOutput{}, fmt.Errorf("cannot resolve %T", ref)
	}
}

func (m *materializer) role(node *Node) error {
	principal, _ := node.Properties[propAssumedBy].(string)
	assumeRolePolicy, err := trustPolicy(principal)
	if err != nil {
		return err
	}

	role, err := iam.NewRole(m.ctx, resourceName(m.name, node.ID), &iam.RoleArgs{
		AssumeRolePolicy: pulumi.String(assumeRolePolicy),
	}, pulumi.Parent(m.parent))
	if err != nil {
		return err
	}

	m.roles[node.ID] = role
	m.set(node.ID, "Ref", role.Name)
	m.set(node.ID, attrArn, role.Arn)
	m.resources = append(m.resources, role)
	return nil
}

func (m *materializer) assetBucket() (*s3.Bucket, error) {
	if m.bucket != nil {
		return m.bucket, nil
	}

	bucket, err := s3.NewBucket(m.ctx, resourceName(m.name, "assets"), &s3.BucketArgs{}, pulumi.Parent(m.parent))
	if err != nil {
		return nil, err
	}

	accessBlock, err := s3.NewBucketPublicAccessBlock(m.ctx, resourceName(m.name, "assets-public-access-block"), &s3.BucketPublicAccessBlockArgs{
		BlockPublicAcls:       pulumi.Bool(true),
		BlockPublicPolicy:     pulumi.Bool(true),
		IgnorePublicAcls:      pulumi.Bool(true),
		RestrictPublicBuckets: pulumi.Bool(true),
		Bucket:                bucket.ID(),
	}, pulumi.Parent(m.parent))
	if err != nil {
		return nil, err
	}

	m.bucket = bucket
	m.resources = append(m.resources, bucket, accessBlock)
	return bucket, nil
}

// asset uploads the package and grants read access to its readers only.
func (m *materializer) asset(node *Node) error {
	path, _ := node.Properties[propPath].(string)
	key, _ := node.Properties[propKey].(string)

	bucket, err := m.assetBucket()
	if err != nil {
		return err
	}

	object, err := s3.NewBucketObject(m.ctx, resourceName(m.name, node.ID), &s3.BucketObjectArgs{
		Bucket: bucket.ID(),
		Key:    pulumi.String(key),
		Source: pulumi.NewFileArchive(path),
	}, pulumi.Parent(m.parent))
	if err != nil {
		return err
	}
	m.resources = append(m.resources, object)

	readers, _ := node.Properties[propReaders].([]interface{})
	for _, reader := range readers {
		ref, ok := reader.(Ref)
		if !ok {
			return fmt.Errorf("reader %v is not a role reference", reader)
		}
		role, ok := m.roles[ref.Node]
		if !ok {
			return fmt.Errorf("%w: role %s has not been provisioned", ErrUnknownNode, ref.Node)
		}

		document, err := rolePolicy(allow([]string{"s3:GetObject"}, "arn:aws:s3:::%s/%s", bucket.ID(), key))
		if err != nil {
			return err
		}

		readPolicy, err := iam.NewRolePolicy(m.ctx, resourceName(m.name, ref.Node+"-read-"+node.ID), &iam.RolePolicyArgs{
			Role:   role.Name,
			Policy: document,
		}, pulumi.Parent(m.parent))
		if err != nil {
			return err
		}
		m.resources = append(m.resources, readPolicy)
	}

	m.set(node.ID, "Ref", pulumi.String(key).ToStringOutput())
	m.set(node.ID, attrBucket, bucket.ID().ToStringOutput())
	m.set(node.ID, attrKey, pulumi.String(key).ToStringOutput())
	return nil
}

func (m *materializer) function(node *Node) error {
	handler, _ := node.Properties[propHandler].(string)
	archive, _ := node.Properties[propArchive].(string)

	var actions []string
	if list, ok := node.Properties[propActions].([]interface{}); ok {
		for _, action := range list {
			if s, ok := action.(string); ok {
				actions = append(actions, s)
			}
		}
	}

	resource, err := m.resolve(node.Properties[propResource])
	if err != nil {
		return err
	}

	function, err := NewFunction(m.ctx, resourceName(m.name, node.ID), FunctionArgs{
		Handler: handler,
		Archive: archive,
		Statements: []PolicyStatement{allow(actions, "%s", resource)},
	}, pulumi.Parent(m.parent))
	if err != nil {
		return err
	}

	m.set(node.ID, "Ref", function.Name)
	m.set(node.ID, attrArn, function.Arn)
	m.resources = append(m.resources, function)
	return nil
}
