package main

import (
	"github.com/pulumi/pulumi/sdk/v2/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v2/go/pulumi/config"
)

const (
	defaultParameterPrefix  = "/alexa-developer/"
	defaultSkillPackagePath = "skill-package"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		cfg := config.New(ctx, "")

		prefix := cfg.Get("parameterPrefix")
		if prefix == "" {
			prefix = defaultParameterPrefix
		}
		skillPackagePath := cfg.Get("skillPackagePath")
		if skillPackagePath == "" {
			skillPackagePath = defaultSkillPackagePath
		}

		credentials, err := lookupCredentials(ctx, prefix)
		if err != nil {
			return err
		}

		backend, err := configureSkillBackend(ctx)
		if err != nil {
			return err
		}

		return configureSkill(ctx, backend, credentials, skillPackagePath)
	})
}
