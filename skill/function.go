package skill

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v2/go/aws/iam"
	"github.com/pulumi/pulumi-aws/sdk/v2/go/aws/lambda"
	"github.com/pulumi/pulumi/sdk/v2/go/pulumi"
)

// FunctionArgs describes a Go Lambda function built into a zip archive.
type FunctionArgs struct {
	// Handler is the binary name inside the archive.
	Handler string
	// Archive is the path of the zip archive.
	Archive string
	// Statements are added to the execution role next to the logging and tracing defaults.
	Statements []PolicyStatement
	// Environment variables, if any.
	Environment pulumi.StringMap
}

var defaultFunctionStatements = []PolicyStatement{
	{
		Effect: "Allow",
		Action: []string{
			"logs:CreateLogGroup",
			"logs:CreateLogStream",
			"logs:PutLogEvents",
		},
		Resource: []string{
			"arn:aws:logs:*:*:*",
		},
	},
	{
		Effect: "Allow",
		Action: []string{
			"xray:PutTraceSegments",
			"xray:PutTelemetryRecords",
			"xray:GetSamplingRules",
			"xray:GetSamplingTargets",
			"xray:GetSamplingStatisticSummaries",
		},
		Resource: []string{
			"*",
		},
	},
}

// NewFunction creates an execution role, its inline policy and a traced go1.x function.
func NewFunction(ctx *pulumi.Context, name string, args FunctionArgs, opts ...pulumi.ResourceOption) (*lambda.Function, error) {
	roleName := fmt.Sprintf("%s-lambda-role", name)
	policyName := fmt.Sprintf("%s-lambda-policy", name)

	assumeRolePolicy, err := trustPolicy("lambda.amazonaws.com")
	if err != nil {
		return nil, err
	}

	role, err := iam.NewRole(ctx, roleName, &iam.RoleArgs{
		AssumeRolePolicy: pulumi.String(assumeRolePolicy),
	}, opts...)
	if err != nil {
		return nil, err
	}

	statements := append(append([]PolicyStatement{}, args.Statements...), defaultFunctionStatements...)

	document, err := rolePolicy(statements...)
	if err != nil {
		return nil, err
	}

	inlinePolicy, err := iam.NewRolePolicy(ctx, policyName, &iam.RolePolicyArgs{
		Role:   role.Name,
		Policy: document,
	}, opts...)
	if err != nil {
		return nil, err
	}

	functionArgs := &lambda.FunctionArgs{
		Handler: pulumi.String(args.Handler),
		Role:    role.Arn,
		Runtime: pulumi.String("go1.x"),
		Code:    pulumi.NewFileArchive(args.Archive),
		TracingConfig: lambda.FunctionTracingConfigArgs{
			Mode: pulumi.String("Active"),
		},
	}
	if len(args.Environment) > 0 {
		functionArgs.Environment = lambda.FunctionEnvironmentArgs{
			Variables: args.Environment,
		}
	}

	return lambda.NewFunction(
		ctx,
		name,
		functionArgs,
		append(opts, pulumi.DependsOn([]pulumi.Resource{inlinePolicy}))...,
	)
}
