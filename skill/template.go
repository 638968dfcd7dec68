package skill

import (
	"fmt"
	"strings"

	"github.com/awslabs/goformation/v4/cloudformation"
	"github.com/awslabs/goformation/v4/cloudformation/ask"
	"github.com/awslabs/goformation/v4/cloudformation/lambda"
	"github.com/mitchellh/mapstructure"
)

const customResourcePrefix = "Custom::"

// Template is the CloudFormation document for the template-hosted part of a graph.
type Template struct {
	*cloudformation.Template

	// Bindings maps each parameter to the reference it stands for.
	Bindings map[string]interface{}
}

// customResource is a Custom:: resource backed by a ServiceToken. Its properties are free-form.
type customResource struct {
	Type       string                 `json:"Type"`
	Properties map[string]interface{} `json:"Properties,omitempty"`
	DependsOn  []string               `json:"DependsOn,omitempty"`
}

// AWSCloudFormationType returns the AWS CloudFormation resource type
func (r *customResource) AWSCloudFormationType() string {
	return r.Type
}

// Template renders the template-hosted nodes. References to Pulumi-hosted nodes and Params
// become stack parameters. Only edges between template-hosted nodes become DependsOn entries;
// the rest are ordered by Pulumi before the stack is created.
func (g *Graph) Template(description string, outputs map[string]interface{}) (*Template, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	tmpl := &Template{
		Template: cloudformation.NewTemplate(),
		Bindings: map[string]interface{}{},
	}
	tmpl.Description = description

	for _, node := range g.Nodes() {
		if node.Host != HostTemplate {
			continue
		}

		props, err := g.render(tmpl, node.Properties)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", node.ID, err)
		}

		var dependsOn []string
		for _, dep := range node.dependsOn {
			if g.nodes[dep].Host == HostTemplate {
				dependsOn = append(dependsOn, dep)
			}
		}

		resource, err := newTemplateResource(node.Type, props.(map[string]interface{}), dependsOn)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", node.ID, err)
		}
		tmpl.Resources[node.ID] = resource
	}

	for name, value := range outputs {
		rendered, err := g.render(tmpl, value)
		if err != nil {
			return nil, fmt.Errorf("render output %s: %w", name, err)
		}
		tmpl.Outputs[name] = cloudformation.Output{Value: rendered}
	}

	return tmpl, nil
}

// newTemplateResource decodes rendered properties into the typed resource for resourceType.
// Unknown property names are an error.
func newTemplateResource(resourceType string, props map[string]interface{}, dependsOn []string) (cloudformation.Resource, error) {
	switch resourceType {
	case TypeSkill:
		skill := &ask.Skill{}
		if err := decodeProperties(props, skill); err != nil {
			return nil, err
		}
		skill.AWSCloudFormationDependsOn = dependsOn
		return skill, nil
	case TypePermission:
		permission := &lambda.Permission{}
		if err := decodeProperties(props, permission); err != nil {
			return nil, err
		}
		permission.AWSCloudFormationDependsOn = dependsOn
		return permission, nil
	}

	if !strings.HasPrefix(resourceType, customResourcePrefix) {
		return nil, fmt.Errorf("no CloudFormation resource for %s", resourceType)
	}
	resource := &customResource{Type: resourceType, DependsOn: dependsOn}
	if len(props) > 0 {
		resource.Properties = props
	}
	return resource, nil
}

func decodeProperties(props map[string]interface{}, resource cloudformation.Resource) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      resource,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(props); err != nil {
		return fmt.Errorf("%s properties: %w", resource.AWSCloudFormationType(), err)
	}
	return nil
}

// render replaces graph references with CloudFormation intrinsics.
func (g *Graph) render(tmpl *Template, value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case Ref:
		node, ok := g.nodes[v.Node]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNode, v.Node)
		}
		if node.Host == HostTemplate {
			return cloudformation.Ref(v.Node), nil
		}
		return tmpl.bind(v.Node+"Ref", v), nil
	case Attr:
		node, ok := g.nodes[v.Node]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNode, v.Node)
		}
		if node.Host == HostTemplate {
			return cloudformation.GetAtt(v.Node, v.Name), nil
		}
		return tmpl.bind(v.Node+v.Name, v), nil
	case Param:
		return tmpl.bind(v.Name, v), nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			rendered, err := g.render(tmpl, item)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, 0, len(v))
		for _, item := range v {
			rendered, err := g.render(tmpl, item)
			if err != nil {
				return nil, err
			}
			out = append(out, rendered)
		}
		return out, nil
	default:
		return v, nil
	}
}

func (t *Template) bind(name string, ref interface{}) string {
	t.Parameters[name] = cloudformation.Parameter{Type: "String"}
	t.Bindings[name] = ref
	return cloudformation.Ref(name)
}
