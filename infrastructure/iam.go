package main

import (
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/iam"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// IamResources holds all the IAM resources
type IamResources struct {
	AdminGroup         *iam.Group
	Ec2Role            *iam.Role
	Ec2InstanceProfile *iam.InstanceProfile
	PasswordPolicy     *iam.AccountPasswordPolicy
}

// assumeRolePolicy returns a trust policy for a single AWS service principal.
func assumeRolePolicy(service string) pulumi.String {
	return pulumi.String(`{
		"Version": "2012-10-17",
		"Statement": [{
			"Action": "sts:AssumeRole",
			"Principal": {
				"Service": "` + service + `"
			},
			"Effect": "Allow",
			"Sid": ""
		}]
	}`)
}

// createIamResources creates the admin group, the SSM-managed EC2 role and
// the account password policy
func createIamResources(ctx *pulumi.Context, cfg StackConfig) (*IamResources, error) {
	adminGroup, err := iam.NewGroup(ctx, "soc2-admins", &iam.GroupArgs{
		Name: pulumi.String("soc2-admins"),
	})
	if err != nil {
		return nil, err
	}

	_, err = iam.NewGroupPolicyAttachment(ctx, "soc2-admins-access", &iam.GroupPolicyAttachmentArgs{
		Group:     adminGroup.Name,
		PolicyArn: pulumi.String("arn:aws:iam::aws:policy/AdministratorAccess"),
	})
	if err != nil {
		return nil, err
	}

	// EC2 instances are reachable through Session Manager only
	ec2Role, err := iam.NewRole(ctx, "soc2-ec2-role", &iam.RoleArgs{
		AssumeRolePolicy: assumeRolePolicy("ec2.amazonaws.com"),
		Tags: pulumi.StringMap{
			"Name": pulumi.String("soc2-ec2-role"),
		},
	})
	if err != nil {
		return nil, err
	}

	_, err = iam.NewRolePolicyAttachment(ctx, "soc2-ec2-ssm-policy", &iam.RolePolicyAttachmentArgs{
		Role:      ec2Role.Name,
		PolicyArn: pulumi.String("arn:aws:iam::aws:policy/AmazonSSMManagedInstanceCore"),
	})
	if err != nil {
		return nil, err
	}

	ec2InstanceProfile, err := iam.NewInstanceProfile(ctx, "soc2-ec2-instance-profile", &iam.InstanceProfileArgs{
		Role: ec2Role.Name,
	})
	if err != nil {
		return nil, err
	}

	passwordPolicy, err := iam.NewAccountPasswordPolicy(ctx, "soc2-password-policy", &iam.AccountPasswordPolicyArgs{
		MinimumPasswordLength:      pulumi.Int(cfg.PasswordMinimumLength),
		RequireLowercaseCharacters: pulumi.Bool(true),
		RequireUppercaseCharacters: pulumi.Bool(true),
		RequireNumbers:             pulumi.Bool(true),
		RequireSymbols:             pulumi.Bool(true),
		AllowUsersToChangePassword: pulumi.Bool(true),
		MaxPasswordAge:             pulumi.Int(cfg.PasswordMaxAge),
		PasswordReusePrevention:    pulumi.Int(cfg.PasswordReusePrevention),
	})
	if err != nil {
		return nil, err
	}

	return &IamResources{
		AdminGroup:         adminGroup,
		Ec2Role:            ec2Role,
		Ec2InstanceProfile: ec2InstanceProfile,
		PasswordPolicy:     passwordPolicy,
	}, nil
}
