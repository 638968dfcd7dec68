package skill

import (
	"encoding/json"

	"github.com/pulumi/pulumi/sdk/v2/go/pulumi"
)

const policyVersion = "2012-10-17"

type policy struct {
	Version   string
	Statement []PolicyStatement
}

type principal struct {
	Service string
}

// PolicyStatement is one IAM policy statement. Resource entries may hold %s placeholders that
// are filled from ResourceArgs once those outputs resolve.
type PolicyStatement struct {
	Effect    string
	Principal *principal `json:",omitempty"`
	Action    []string
	Resource  []string `json:",omitempty"`

	ResourceArgs []interface{} `json:"-"`
}

func allow(actions []string, resource string, args ...interface{}) PolicyStatement {
	return PolicyStatement{
		Effect:       "Allow",
		Action:       actions,
		Resource:     []string{resource},
		ResourceArgs: args,
	}
}

// trustPolicy lets service assume a role.
func trustPolicy(service string) (string, error) {
	return marshalPolicy(PolicyStatement{
		Effect:    "Allow",
		Principal: &principal{Service: service},
		Action:    []string{"sts:AssumeRole"},
	})
}

// rolePolicy renders an inline role policy.
func rolePolicy(statements ...PolicyStatement) (pulumi.StringOutput, error) {
	doc, err := marshalPolicy(statements...)
	if err != nil {
		return pulumi.StringOutput{}, err
	}

	var args []interface{}
	for _, statement := range statements {
		args = append(args, statement.ResourceArgs...)
	}
	return pulumi.Sprintf(doc, args...), nil
}

func marshalPolicy(statements ...PolicyStatement) (string, error) {
	doc, err := json.Marshal(policy{Version: policyVersion, Statement: statements})
	return string(doc), err
}
