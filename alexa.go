package main

import (
	"github.com/pulumi/pulumi-aws/sdk/v2/go/aws/lambda"
	"github.com/pulumi/pulumi-aws/sdk/v2/go/aws/ssm"
	"github.com/pulumi/pulumi/sdk/v2/go/pulumi"

	"github.com/aws-samples/cdk-alexa-skill/skill"
)

type alexaCredentials struct {
	vendorID     string
	clientID     string
	clientSecret skill.SecretValue
	refreshToken skill.SecretValue
}

// lookupCredentials reads the Alexa developer account from Parameter Store. The client secret
// and refresh token stay in Secrets Manager and are resolved by CloudFormation.
func lookupCredentials(ctx *pulumi.Context, prefix string) (alexaCredentials, error) {
	vendorID, err := ssm.LookupParameter(ctx, &ssm.LookupParameterArgs{
		Name: prefix + "vendor-id",
	})
	if err != nil {
		return alexaCredentials{}, err
	}

	clientID, err := ssm.LookupParameter(ctx, &ssm.LookupParameterArgs{
		Name: prefix + "client-id",
	})
	if err != nil {
		return alexaCredentials{}, err
	}

	return alexaCredentials{
		vendorID:     vendorID.Value,
		clientID:     clientID.Value,
		clientSecret: skill.SecretsManager(prefix+"client-secret", skill.SecretsManagerOptions{}),
		refreshToken: skill.SecretsManager(prefix+"refresh-token", skill.SecretsManagerOptions{}),
	}, nil
}

func configureSkill(ctx *pulumi.Context, backend *lambda.Function, credentials alexaCredentials, skillPackagePath string) error {
	alexaSkill, err := skill.New(skill.Props{
		EndpointLambdaFunction: backend,
		SkillPackagePath:       skillPackagePath,
		AlexaVendorID:          credentials.vendorID,
		LwaClientID:            credentials.clientID,
		LwaClientSecret:        credentials.clientSecret,
		LwaRefreshToken:        credentials.refreshToken,
	})
	if err != nil {
		return err
	}

	deployment, err := alexaSkill.Deploy(ctx, "alexa-skill")
	if err != nil {
		return err
	}

	ctx.Export("Skill ID", deployment.SkillID())

	return nil
}
