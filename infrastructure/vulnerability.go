package main

import (
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// VulnerabilityResources holds the Inspector agent installer
type VulnerabilityResources struct {
	AgentInstaller *EventFunction
}

const agentInstallerPolicy = `{
	"Version": "2012-10-17",
	"Statement": [
		{
			"Effect": "Allow",
			"Action": [
				"ssm:DescribeInstanceInformation",
				"ssm:SendCommand"
			],
			"Resource": "*"
		}
	]
}`

// createVulnerabilityResources installs the Inspector agent on every instance
// that enters the pending state
func createVulnerabilityResources(ctx *pulumi.Context, cfg StackConfig) (*VulnerabilityResources, error) {
	region, err := aws.GetRegion(ctx, nil, nil)
	if err != nil {
		return nil, err
	}

	installer, err := createEventFunction(ctx, "soc2-inspector-agent", cfg, eventFunctionArgs{
		artifact:    "inspectoragent",
		description: "Installs the Inspector agent on new EC2 instances",
		memorySize:  128,
		timeout:     600,
		environment: pulumi.StringMap{
			"REGION": pulumi.String(region.Name),
		},
		policy: agentInstallerPolicy,
		rules: []eventRuleArgs{
			{
				name:        "soc2-instance-pending",
				description: "EC2 instances entering the pending state",
				pattern:     instancePendingPattern,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	return &VulnerabilityResources{
		AgentInstaller: installer,
	}, nil
}
