package main

import (
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/backup"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/iam"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// BackupResources holds the AWS Backup vault, plan and tag selection
type BackupResources struct {
	Vault     *backup.Vault
	Plan      *backup.Plan
	Selection *backup.Selection
}

// createBackupResources backs up every resource tagged backup=true once a day
func createBackupResources(ctx *pulumi.Context, cfg StackConfig) (*BackupResources, error) {
	vault, err := backup.NewVault(ctx, "soc2-backup-vault", &backup.VaultArgs{
		Name: pulumi.String("soc2-backup-vault"),
		Tags: pulumi.StringMap{
			"Name": pulumi.String("soc2-backup-vault"),
		},
	})
	if err != nil {
		return nil, err
	}

	plan, err := backup.NewPlan(ctx, "soc2-backup-plan", &backup.PlanArgs{
		Name: pulumi.String("soc2-backup-plan"),
		Rules: backup.PlanRuleArray{
			&backup.PlanRuleArgs{
				RuleName:        pulumi.String("DailyBackup"),
				TargetVaultName: vault.Name,
				Schedule:        pulumi.String(cfg.BackupSchedule),
				Lifecycle: &backup.PlanRuleLifecycleArgs{
					DeleteAfter: pulumi.Int(cfg.BackupRetentionDays),
				},
			},
		},
		Tags: pulumi.StringMap{
			"Name": pulumi.String("soc2-backup-plan"),
		},
	})
	if err != nil {
		return nil, err
	}

	backupRole, err := iam.NewRole(ctx, "soc2-backup-role", &iam.RoleArgs{
		AssumeRolePolicy: assumeRolePolicy("backup.amazonaws.com"),
		Tags: pulumi.StringMap{
			"Name": pulumi.String("soc2-backup-role"),
		},
	})
	if err != nil {
		return nil, err
	}

	_, err = iam.NewRolePolicyAttachment(ctx, "soc2-backup-service-policy", &iam.RolePolicyAttachmentArgs{
		Role:      backupRole.Name,
		PolicyArn: pulumi.String("arn:aws:iam::aws:policy/service-role/AWSBackupServiceRolePolicyForBackup"),
	})
	if err != nil {
		return nil, err
	}

	selection, err := backup.NewSelection(ctx, "soc2-backup-selection", &backup.SelectionArgs{
		Name:       pulumi.String("soc2-tagged-resources"),
		PlanId:     plan.ID(),
		IamRoleArn: backupRole.Arn,
		SelectionTags: backup.SelectionSelectionTagArray{
			&backup.SelectionSelectionTagArgs{
				Type:  pulumi.String("STRINGEQUALS"),
				Key:   pulumi.String("backup"),
				Value: pulumi.String("true"),
			},
		},
	})
	if err != nil {
		return nil, err
	}

	return &BackupResources{
		Vault:     vault,
		Plan:      plan,
		Selection: selection,
	}, nil
}
