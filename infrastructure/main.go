package main

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// Soc2Resources collects every component of the baseline
type Soc2Resources struct {
	S3              *S3Resources
	Iam             *IamResources
	Logging         *LoggingResources
	Encryption      *EncryptionResources
	Network         *VpcResources
	Backup          *BackupResources
	Security        *SecurityResources
	NetworkSecurity *NetworkSecurityResources
	Vulnerability   *VulnerabilityResources
}

func createSoc2Resources(ctx *pulumi.Context) (*Soc2Resources, error) {
	cfg := loadStackConfig(ctx)

	// 1. Settings bucket and identity controls
	s3Resources, err := createS3Resources(ctx)
	if err != nil {
		return nil, err
	}
	iamResources, err := createIamResources(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 2. Audit logging and encryption keys
	loggingResources, err := createLoggingResources(ctx, cfg)
	if err != nil {
		return nil, err
	}
	encryptionResources, err := createEncryptionResources(ctx)
	if err != nil {
		return nil, err
	}

	// 3. Network and backups
	networkResources, err := createVpcResources(ctx, cfg)
	if err != nil {
		return nil, err
	}
	backupResources, err := createBackupResources(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 4. Monitoring and edge protection
	securityResources, err := createSecurityResources(ctx, loggingResources)
	if err != nil {
		return nil, err
	}
	networkSecurityResources, err := createNetworkSecurityResources(ctx, cfg, networkResources)
	if err != nil {
		return nil, err
	}
	vulnerabilityResources, err := createVulnerabilityResources(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Soc2Resources{
		S3:              s3Resources,
		Iam:             iamResources,
		Logging:         loggingResources,
		Encryption:      encryptionResources,
		Network:         networkResources,
		Backup:          backupResources,
		Security:        securityResources,
		NetworkSecurity: networkSecurityResources,
		Vulnerability:   vulnerabilityResources,
	}, nil
}

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		resources, err := createSoc2Resources(ctx)
		if err != nil {
			return err
		}

		ctx.Export("webAclArn", resources.NetworkSecurity.WebAcl.Arn)
		ctx.Export("firewallArn", resources.NetworkSecurity.Firewall.Arn)
		ctx.Export("vpcId", resources.Network.Vpc.ID())
		ctx.Export("trailArn", resources.Logging.Trail.Arn)
		ctx.Export("backupVaultName", resources.Backup.Vault.Name)
		ctx.Export("settingsBucketName", resources.S3.SettingsBucket.ID())

		return nil
	})
}
