package main

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"
)

const projectName = "aws-soc2-settings"

// StackConfig holds the tunable settings of the baseline. Every key is
// optional; unset keys keep the SOC 2 defaults below.
type StackConfig struct {
	VpcCidr                     string
	MaxAzs                      int
	ApplicationLogRetentionDays int
	BackupRetentionDays         int
	BackupSchedule              string
	EnableShieldAdvanced        bool
	ShieldResourceArn           string
	LambdaArtifactDir           string
	PasswordMinimumLength       int
	PasswordMaxAge              int
	PasswordReusePrevention     int
}

func loadStackConfig(ctx *pulumi.Context) StackConfig {
	projectCfg := config.New(ctx, projectName)

	return StackConfig{
		VpcCidr:                     stringOr(projectCfg.Get("vpcCidr"), "10.0.0.0/16"),
		MaxAzs:                      intOr(projectCfg.GetInt("maxAzs"), 2),
		ApplicationLogRetentionDays: intOr(projectCfg.GetInt("applicationLogRetentionDays"), 365),
		BackupRetentionDays:         intOr(projectCfg.GetInt("backupRetentionDays"), 30),
		BackupSchedule:              stringOr(projectCfg.Get("backupSchedule"), "cron(0 3 * * ? *)"),
		EnableShieldAdvanced:        projectCfg.GetBool("enableShieldAdvanced"),
		ShieldResourceArn:           projectCfg.Get("shieldResourceArn"),
		LambdaArtifactDir:           stringOr(projectCfg.Get("lambdaArtifactDir"), "../build"),
		PasswordMinimumLength:       intOr(projectCfg.GetInt("passwordMinimumLength"), 14),
		PasswordMaxAge:              intOr(projectCfg.GetInt("passwordMaxAge"), 90),
		PasswordReusePrevention:     intOr(projectCfg.GetInt("passwordReusePrevention"), 24),
	}
}

func stringOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func intOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
