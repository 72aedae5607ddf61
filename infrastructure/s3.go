package main

import (
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/s3"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// S3Resources holds all the S3 resources
type S3Resources struct {
	SettingsBucket *s3.Bucket
}

// newSecureBucket creates a private, versioned, SSE-S3 encrypted bucket with
// all public access blocked.
func newSecureBucket(ctx *pulumi.Context, name string, opts ...pulumi.ResourceOption) (*s3.Bucket, error) {
	bucket, err := s3.NewBucket(ctx, name, &s3.BucketArgs{
		Acl: pulumi.String("private"),
		Versioning: &s3.BucketVersioningArgs{
			Enabled: pulumi.Bool(true),
		},
		ServerSideEncryptionConfiguration: &s3.BucketServerSideEncryptionConfigurationArgs{
			Rule: &s3.BucketServerSideEncryptionConfigurationRuleArgs{
				ApplyServerSideEncryptionByDefault: &s3.BucketServerSideEncryptionConfigurationRuleApplyServerSideEncryptionByDefaultArgs{
					SseAlgorithm: pulumi.String("AES256"),
				},
			},
		},
		Tags: pulumi.StringMap{
			"Name": pulumi.String(name),
		},
	}, opts...)
	if err != nil {
		return nil, err
	}

	_, err = s3.NewBucketPublicAccessBlock(ctx, name+"-public-access-block", &s3.BucketPublicAccessBlockArgs{
		Bucket:                bucket.ID(),
		BlockPublicAcls:       pulumi.Bool(true),
		BlockPublicPolicy:     pulumi.Bool(true),
		IgnorePublicAcls:      pulumi.Bool(true),
		RestrictPublicBuckets: pulumi.Bool(true),
	})
	if err != nil {
		return nil, err
	}

	return bucket, nil
}

// createS3Resources creates the root settings bucket
func createS3Resources(ctx *pulumi.Context) (*S3Resources, error) {
	settingsBucket, err := newSecureBucket(ctx, "soc2-settings-bucket")
	if err != nil {
		return nil, err
	}

	return &S3Resources{
		SettingsBucket: settingsBucket,
	}, nil
}
