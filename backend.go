package main

import (
	"github.com/pulumi/pulumi-aws/sdk/v2/go/aws/lambda"
	"github.com/pulumi/pulumi/sdk/v2/go/pulumi"

	"github.com/aws-samples/cdk-alexa-skill/skill"
)

func configureSkillBackend(ctx *pulumi.Context) (*lambda.Function, error) {
	function, err := skill.NewFunction(ctx, "alexa-skill-backend", skill.FunctionArgs{
		Handler: "skill-backend-handler",
		Archive: "./build/skill-backend-handler.zip",
	})
	if err != nil {
		return nil, err
	}

	ctx.Export("Skill Backend", function.Arn)

	return function, nil
}
