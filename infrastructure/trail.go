package main

import (
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/cloudtrail"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/cloudwatch"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/s3"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// LoggingResources holds the audit trail and log retention resources
type LoggingResources struct {
	TrailBucket         *s3.Bucket
	Trail               *cloudtrail.Trail
	ApplicationLogGroup *cloudwatch.LogGroup
}

// createLoggingResources creates the CloudTrail bucket, a multi-region trail
// and the application log group
func createLoggingResources(ctx *pulumi.Context, cfg StackConfig) (*LoggingResources, error) {
	trailBucket, err := newSecureBucket(ctx, "soc2-cloudtrail-bucket")
	if err != nil {
		return nil, err
	}

	// CloudTrail and AWS Config both deliver into this bucket
	bucketPolicy, err := s3.NewBucketPolicy(ctx, "soc2-cloudtrail-bucket-policy", &s3.BucketPolicyArgs{
		Bucket: trailBucket.ID(),
		Policy: pulumi.All(trailBucket.Arn).ApplyT(func(args []interface{}) string {
			bucketArn := args[0].(string)
			return `{
				"Version": "2012-10-17",
				"Statement": [
					{
						"Sid": "AclCheck",
						"Effect": "Allow",
						"Principal": {
							"Service": ["cloudtrail.amazonaws.com", "config.amazonaws.com"]
						},
						"Action": ["s3:GetBucketAcl", "s3:ListBucket"],
						"Resource": "` + bucketArn + `"
					},
					{
						"Sid": "Write",
						"Effect": "Allow",
						"Principal": {
							"Service": ["cloudtrail.amazonaws.com", "config.amazonaws.com"]
						},
						"Action": "s3:PutObject",
						"Resource": "` + bucketArn + `/*",
						"Condition": {
							"StringEquals": {
								"s3:x-amz-acl": "bucket-owner-full-control"
							}
						}
					},
					{
						"Sid": "DenyInsecureTransport",
						"Effect": "Deny",
						"Principal": "*",
						"Action": "s3:*",
						"Resource": ["` + bucketArn + `", "` + bucketArn + `/*"],
						"Condition": {
							"Bool": {
								"aws:SecureTransport": "false"
							}
						}
					}
				]
			}`
		}).(pulumi.StringOutput),
	})
	if err != nil {
		return nil, err
	}

	trail, err := cloudtrail.NewTrail(ctx, "soc2-trail", &cloudtrail.TrailArgs{
		S3BucketName:               trailBucket.ID(),
		IsMultiRegionTrail:         pulumi.Bool(true),
		IncludeGlobalServiceEvents: pulumi.Bool(true),
		EnableLogFileValidation:    pulumi.Bool(true),
		Tags: pulumi.StringMap{
			"Name": pulumi.String("soc2-trail"),
		},
	}, pulumi.DependsOn([]pulumi.Resource{bucketPolicy}))
	if err != nil {
		return nil, err
	}

	applicationLogGroup, err := cloudwatch.NewLogGroup(ctx, "soc2-application-logs", &cloudwatch.LogGroupArgs{
		RetentionInDays: pulumi.Int(cfg.ApplicationLogRetentionDays),
		Tags: pulumi.StringMap{
			"Name": pulumi.String("soc2-application-logs"),
		},
	})
	if err != nil {
		return nil, err
	}

	return &LoggingResources{
		TrailBucket:         trailBucket,
		Trail:               trail,
		ApplicationLogGroup: applicationLogGroup,
	}, nil
}
