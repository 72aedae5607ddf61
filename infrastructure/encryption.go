package main

import (
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/kms"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// EncryptionResources holds the customer managed keys
type EncryptionResources struct {
	GeneralKey *kms.Key
	S3Key      *kms.Key
}

func createEncryptionResources(ctx *pulumi.Context) (*EncryptionResources, error) {
	generalKey, err := kms.NewKey(ctx, "soc2-general-key", &kms.KeyArgs{
		Description:       pulumi.String("General purpose encryption key"),
		EnableKeyRotation: pulumi.Bool(true),
		Tags: pulumi.StringMap{
			"Name": pulumi.String("soc2-general-key"),
		},
	})
	if err != nil {
		return nil, err
	}

	s3Key, err := kms.NewKey(ctx, "soc2-s3-key", &kms.KeyArgs{
		Description:       pulumi.String("S3 bucket encryption key"),
		EnableKeyRotation: pulumi.Bool(true),
		Tags: pulumi.StringMap{
			"Name": pulumi.String("soc2-s3-key"),
		},
	})
	if err != nil {
		return nil, err
	}

	return &EncryptionResources{
		GeneralKey: generalKey,
		S3Key:      s3Key,
	}, nil
}
