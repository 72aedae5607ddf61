package main

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/networkfirewall"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/shield"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/wafv2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// NetworkSecurityResources holds the edge protection resources and the
// function that keeps new load balancers and APIs behind the Web ACL
type NetworkSecurityResources struct {
	WebAcl        *wafv2.WebAcl
	Protection    *shield.Protection
	Firewall      *networkfirewall.Firewall
	WafAssociator *EventFunction
}

const wafAssociatorPolicy = `{
	"Version": "2012-10-17",
	"Statement": [
		{
			"Effect": "Allow",
			"Action": [
				"elasticloadbalancing:DescribeLoadBalancers",
				"apigateway:GET",
				"wafv2:AssociateWebACL",
				"wafv2:DisassociateWebACL"
			],
			"Resource": "*"
		}
	]
}`

func createNetworkSecurityResources(ctx *pulumi.Context, cfg StackConfig, network *VpcResources) (*NetworkSecurityResources, error) {
	webAcl, err := wafv2.NewWebAcl(ctx, "soc2-web-acl", &wafv2.WebAclArgs{
		Name:  pulumi.String("soc2-web-acl"),
		Scope: pulumi.String("REGIONAL"),
		DefaultAction: &wafv2.WebAclDefaultActionArgs{
			Allow: &wafv2.WebAclDefaultActionAllowArgs{},
		},
		Rules: wafv2.WebAclRuleArray{
			&wafv2.WebAclRuleArgs{
				Name:     pulumi.String("AWSManagedRulesCommonRuleSet"),
				Priority: pulumi.Int(1),
				OverrideAction: &wafv2.WebAclRuleOverrideActionArgs{
					None: &wafv2.WebAclRuleOverrideActionNoneArgs{},
				},
				Statement: &wafv2.WebAclRuleStatementArgs{
					ManagedRuleGroupStatement: &wafv2.WebAclRuleStatementManagedRuleGroupStatementArgs{
						Name:       pulumi.String("AWSManagedRulesCommonRuleSet"),
						VendorName: pulumi.String("AWS"),
					},
				},
				VisibilityConfig: &wafv2.WebAclRuleVisibilityConfigArgs{
					CloudwatchMetricsEnabled: pulumi.Bool(true),
					MetricName:               pulumi.String("AWSManagedRulesCommonRuleSetMetric"),
					SampledRequestsEnabled:   pulumi.Bool(true),
				},
			},
		},
		VisibilityConfig: &wafv2.WebAclVisibilityConfigArgs{
			CloudwatchMetricsEnabled: pulumi.Bool(true),
			MetricName:               pulumi.String("SOC2WebACLMetric"),
			SampledRequestsEnabled:   pulumi.Bool(true),
		},
		Tags: pulumi.StringMap{
			"Name": pulumi.String("soc2-web-acl"),
		},
	})
	if err != nil {
		return nil, err
	}

	var protection *shield.Protection
	if cfg.EnableShieldAdvanced {
		resourceArn := cfg.ShieldResourceArn
		if resourceArn == "" {
			resourceArn, err = defaultShieldResourceArn(ctx)
			if err != nil {
				return nil, err
			}
		}
		protection, err = shield.NewProtection(ctx, "soc2-shield-protection", &shield.ProtectionArgs{
			Name:        pulumi.String("soc2-shield-protection"),
			ResourceArn: pulumi.String(resourceArn),
		})
		if err != nil {
			return nil, err
		}
	} else {
		ctx.Log.Info("Shield Advanced protection disabled; set enableShieldAdvanced to turn it on", nil)
	}

	firewall, err := createFirewall(ctx, network)
	if err != nil {
		return nil, err
	}

	wafAssociator, err := createEventFunction(ctx, "soc2-waf-associator", cfg, eventFunctionArgs{
		artifact:    "wafassociator",
		description: "Associates the SOC 2 Web ACL with new load balancers and API stages",
		memorySize:  128,
		timeout:     300,
		environment: pulumi.StringMap{
			"WEB_ACL_ARN": webAcl.Arn,
		},
		policy: wafAssociatorPolicy,
		rules: []eventRuleArgs{
			{
				name:        "soc2-alb-created",
				description: "New load balancers created through the ELB API",
				pattern:     loadBalancerCreatedPattern,
			},
			{
				name:        "soc2-api-created",
				description: "New REST APIs and stages created through the API Gateway API",
				pattern:     apiGatewayCreatedPattern,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	return &NetworkSecurityResources{
		WebAcl:        webAcl,
		Protection:    protection,
		Firewall:      firewall,
		WafAssociator: wafAssociator,
	}, nil
}

// defaultShieldResourceArn covers every load balancer in the deployment
// account and region.
func defaultShieldResourceArn(ctx *pulumi.Context) (string, error) {
	identity, err := aws.GetCallerIdentity(ctx)
	if err != nil {
		return "", err
	}
	region, err := aws.GetRegion(ctx, nil, nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("arn:aws:elasticloadbalancing:%s:%s:loadbalancer/*", region.Name, identity.AccountId), nil
}

// createFirewall deploys a Network Firewall into the public subnets. Stateless
// traffic is handed to the stateful engine, which passes TCP.
func createFirewall(ctx *pulumi.Context, network *VpcResources) (*networkfirewall.Firewall, error) {
	ruleGroup, err := networkfirewall.NewRuleGroup(ctx, "soc2-stateful-rules", &networkfirewall.RuleGroupArgs{
		Name:     pulumi.String("soc2-stateful-rules"),
		Capacity: pulumi.Int(100),
		Type:     pulumi.String("STATEFUL"),
		RuleGroup: &networkfirewall.RuleGroupRuleGroupArgs{
			RulesSource: &networkfirewall.RuleGroupRuleGroupRulesSourceArgs{
				StatefulRules: networkfirewall.RuleGroupRuleGroupRulesSourceStatefulRuleArray{
					&networkfirewall.RuleGroupRuleGroupRulesSourceStatefulRuleArgs{
						Action: pulumi.String("PASS"),
						Header: &networkfirewall.RuleGroupRuleGroupRulesSourceStatefulRuleHeaderArgs{
							Protocol:        pulumi.String("TCP"),
							Source:          pulumi.String("ANY"),
							SourcePort:      pulumi.String("ANY"),
							Direction:       pulumi.String("FORWARD"),
							Destination:     pulumi.String("ANY"),
							DestinationPort: pulumi.String("ANY"),
						},
						RuleOptions: networkfirewall.RuleGroupRuleGroupRulesSourceStatefulRuleRuleOptionArray{
							&networkfirewall.RuleGroupRuleGroupRulesSourceStatefulRuleRuleOptionArgs{
								Keyword:  pulumi.String("sid"),
								Settings: pulumi.StringArray{pulumi.String("1")},
							},
						},
					},
				},
			},
		},
		Tags: pulumi.StringMap{
			"Name": pulumi.String("soc2-stateful-rules"),
		},
	})
	if err != nil {
		return nil, err
	}

	policy, err := networkfirewall.NewFirewallPolicy(ctx, "soc2-firewall-policy", &networkfirewall.FirewallPolicyArgs{
		Name: pulumi.String("soc2-firewall-policy"),
		FirewallPolicy: &networkfirewall.FirewallPolicyFirewallPolicyArgs{
			StatelessDefaultActions:         pulumi.StringArray{pulumi.String("aws:forward_to_sfe")},
			StatelessFragmentDefaultActions: pulumi.StringArray{pulumi.String("aws:forward_to_sfe")},
			StatefulRuleGroupReferences: networkfirewall.FirewallPolicyFirewallPolicyStatefulRuleGroupReferenceArray{
				&networkfirewall.FirewallPolicyFirewallPolicyStatefulRuleGroupReferenceArgs{
					ResourceArn: ruleGroup.Arn,
				},
			},
		},
		Tags: pulumi.StringMap{
			"Name": pulumi.String("soc2-firewall-policy"),
		},
	})
	if err != nil {
		return nil, err
	}

	var mappings networkfirewall.FirewallSubnetMappingArray
	for _, subnet := range network.PublicSubnets {
		mappings = append(mappings, &networkfirewall.FirewallSubnetMappingArgs{
			SubnetId: subnet.ID(),
		})
	}

	return networkfirewall.NewFirewall(ctx, "soc2-network-firewall", &networkfirewall.FirewallArgs{
		Name:              pulumi.String("SOC2NetworkFirewall"),
		FirewallPolicyArn: policy.Arn,
		VpcId:             network.Vpc.ID(),
		SubnetMappings:    mappings,
		Tags: pulumi.StringMap{
			"Name": pulumi.String("SOC2NetworkFirewall"),
		},
	})
}
