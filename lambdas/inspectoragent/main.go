package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/NorthCoast-DevOps/aws-soc2-settings/internal/agentinstall"
	"github.com/NorthCoast-DevOps/aws-soc2-settings/internal/logging"
	"github.com/NorthCoast-DevOps/aws-soc2-settings/internal/settings"
)

func main() {
	logger := logging.New(os.Stdout, settings.LogLevel()).With().Str("function", "inspector-agent-installer").Logger()

	cfg, err := settings.LoadAgentInstall()
	if err != nil {
		logger.Fatal().Err(err).Msg("Error loading configuration")
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(cfg.Region))
	if err != nil {
		logger.Fatal().Err(err).Msg("Error loading AWS config")
	}

	installer, err := agentinstall.NewInstaller(cfg, ssm.NewFromConfig(awsCfg), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Error creating installer")
	}

	lambda.Start(installer.HandleCloudWatchEvent)
}
