package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/NorthCoast-DevOps/aws-soc2-settings/internal/association"
	"github.com/NorthCoast-DevOps/aws-soc2-settings/internal/logging"
	"github.com/NorthCoast-DevOps/aws-soc2-settings/internal/settings"
)

func main() {
	logger := logging.New(os.Stdout, settings.LogLevel()).With().Str("function", "auto-associate-waf").Logger()

	// Configuration is read once per execution environment.
	cfg, err := settings.LoadAssociation()
	if err != nil {
		logger.Fatal().Err(err).Msg("Error loading configuration")
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		logger.Fatal().Err(err).Msg("Error loading AWS config")
	}

	handler, err := association.NewHandler(cfg, association.NewClients(awsCfg), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Error creating handler")
	}

	lambda.Start(handler.HandleCloudWatchEvent)
}
