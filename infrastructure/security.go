package main

import (
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/cfg"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/guardduty"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/iam"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/securityhub"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// SecurityResources holds the continuous monitoring services
type SecurityResources struct {
	ConfigRecorder  *cfg.Recorder
	DeliveryChannel *cfg.DeliveryChannel
	Detector        *guardduty.Detector
	SecurityHub     *securityhub.Account
}

// createSecurityResources turns on AWS Config, GuardDuty and Security Hub.
// Config snapshots land in the trail bucket under the config/ prefix.
func createSecurityResources(ctx *pulumi.Context, logging *LoggingResources) (*SecurityResources, error) {
	configRole, err := iam.NewRole(ctx, "soc2-config-role", &iam.RoleArgs{
		AssumeRolePolicy: assumeRolePolicy("config.amazonaws.com"),
		Tags: pulumi.StringMap{
			"Name": pulumi.String("soc2-config-role"),
		},
	})
	if err != nil {
		return nil, err
	}

	_, err = iam.NewRolePolicyAttachment(ctx, "soc2-config-role-policy", &iam.RolePolicyAttachmentArgs{
		Role:      configRole.Name,
		PolicyArn: pulumi.String("arn:aws:iam::aws:policy/service-role/AWS_ConfigRole"),
	})
	if err != nil {
		return nil, err
	}

	recorder, err := cfg.NewRecorder(ctx, "soc2-config-recorder", &cfg.RecorderArgs{
		Name:    pulumi.String("soc2-config-recorder"),
		RoleArn: configRole.Arn,
		RecordingGroup: &cfg.RecorderRecordingGroupArgs{
			AllSupported:               pulumi.Bool(true),
			IncludeGlobalResourceTypes: pulumi.Bool(true),
		},
	})
	if err != nil {
		return nil, err
	}

	deliveryChannel, err := cfg.NewDeliveryChannel(ctx, "soc2-config-delivery", &cfg.DeliveryChannelArgs{
		Name:         pulumi.String("soc2-config-delivery"),
		S3BucketName: logging.TrailBucket.ID(),
		S3KeyPrefix:  pulumi.String("config"),
	}, pulumi.DependsOn([]pulumi.Resource{recorder}))
	if err != nil {
		return nil, err
	}

	_, err = cfg.NewRecorderStatus(ctx, "soc2-config-recorder-status", &cfg.RecorderStatusArgs{
		Name:      recorder.Name,
		IsEnabled: pulumi.Bool(true),
	}, pulumi.DependsOn([]pulumi.Resource{deliveryChannel}))
	if err != nil {
		return nil, err
	}

	detector, err := guardduty.NewDetector(ctx, "soc2-guardduty", &guardduty.DetectorArgs{
		Enable: pulumi.Bool(true),
		Tags: pulumi.StringMap{
			"Name": pulumi.String("soc2-guardduty"),
		},
	})
	if err != nil {
		return nil, err
	}

	hub, err := securityhub.NewAccount(ctx, "soc2-security-hub", &securityhub.AccountArgs{})
	if err != nil {
		return nil, err
	}

	return &SecurityResources{
		ConfigRecorder:  recorder,
		DeliveryChannel: deliveryChannel,
		Detector:        detector,
		SecurityHub:     hub,
	}, nil
}
