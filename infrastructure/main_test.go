package main

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/backup"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/cloudwatch"
	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mocks int

func (mocks) NewResource(args pulumi.MockResourceArgs) (string, resource.PropertyMap, error) {
	outputs := args.Inputs.Copy()
	outputs["arn"] = resource.NewStringProperty("arn:aws:mock::123456789012:" + args.Name)
	if _, ok := outputs["name"]; !ok {
		outputs["name"] = resource.NewStringProperty(args.Name)
	}
	return args.Name + "_id", outputs, nil
}

func (mocks) Call(args pulumi.MockCallArgs) (resource.PropertyMap, error) {
	switch args.Token {
	case "aws:index/getAvailabilityZones:getAvailabilityZones":
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"id":    "us-east-1",
			"names": []interface{}{"us-east-1a", "us-east-1b", "us-east-1c"},
		}), nil
	case "aws:index/getRegion:getRegion":
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"id":   "us-east-1",
			"name": "us-east-1",
		}), nil
	case "aws:index/getCallerIdentity:getCallerIdentity":
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"id":        "123456789012",
			"accountId": "123456789012",
			"arn":       "arn:aws:iam::123456789012:user/deployer",
			"userId":    "AIDAEXAMPLE",
		}), nil
	}
	return resource.PropertyMap{}, nil
}

// deref unwraps a resolved output value that may be optional.
func deref(v interface{}) interface{} {
	switch x := v.(type) {
	case *string:
		if x == nil {
			return nil
		}
		return *x
	case *int:
		if x == nil {
			return nil
		}
		return *x
	case *bool:
		if x == nil {
			return nil
		}
		return *x
	default:
		return v
	}
}

func runStack(t *testing.T, check func(t *testing.T, res *Soc2Resources, wg *sync.WaitGroup)) {
	t.Helper()
	err := pulumi.RunWithMocks(projectName, "test", mocks(0), func(ctx *pulumi.Context) error {
		res, err := createSoc2Resources(ctx)
		if err != nil {
			return err
		}
		var wg sync.WaitGroup
		check(t, res, &wg)
		wg.Wait()
		return nil
	})
	require.NoError(t, err)
}

func TestWebAclArnReachesAssociator(t *testing.T) {
	runStack(t, func(t *testing.T, res *Soc2Resources, wg *sync.WaitGroup) {
		function := res.NetworkSecurity.WafAssociator.Function

		wg.Add(1)
		pulumi.All(res.NetworkSecurity.WebAcl.Arn, function.Environment.Variables()).ApplyT(func(all []interface{}) error {
			defer wg.Done()
			arn := all[0].(string)
			vars := all[1].(map[string]string)
			assert.NotEmpty(t, arn)
			assert.Equal(t, arn, vars["WEB_ACL_ARN"])
			return nil
		})

		wg.Add(1)
		pulumi.All(function.Handler, function.Runtime).ApplyT(func(all []interface{}) error {
			defer wg.Done()
			assert.Equal(t, "bootstrap", deref(all[0]))
			assert.Equal(t, "provided.al2", deref(all[1]))
			return nil
		})
	})
}

func TestAutomationRulesMatchCreationEvents(t *testing.T) {
	runStack(t, func(t *testing.T, res *Soc2Resources, wg *sync.WaitGroup) {
		expected := map[string][]string{
			"soc2-alb-created":      {"CreateLoadBalancer"},
			"soc2-api-created":      {"CreateRestApi", "CreateStage"},
			"soc2-instance-pending": nil,
		}
		rules := map[string]*cloudwatch.EventRule{}
		for _, fn := range []*EventFunction{res.NetworkSecurity.WafAssociator, res.Vulnerability.AgentInstaller} {
			for name, rule := range fn.Rules {
				rules[name] = rule
			}
		}
		require.Len(t, rules, len(expected))

		for name, eventNames := range expected {
			name, eventNames := name, eventNames
			rule, ok := rules[name]
			require.True(t, ok, name)

			wg.Add(1)
			pulumi.All(rule.EventPattern).ApplyT(func(all []interface{}) error {
				defer wg.Done()
				pattern, ok := deref(all[0]).(string)
				if !assert.True(t, ok, name) {
					return nil
				}
				var decoded struct {
					Detail struct {
						EventName []string `json:"eventName"`
						State     []string `json:"state"`
					} `json:"detail"`
				}
				assert.NoError(t, json.Unmarshal([]byte(pattern), &decoded))
				if eventNames == nil {
					assert.Equal(t, []string{"pending"}, decoded.Detail.State, name)
				} else {
					assert.Equal(t, eventNames, decoded.Detail.EventName, name)
				}
				return nil
			})
		}
	})
}

func TestAgentInstallerGetsRegion(t *testing.T) {
	runStack(t, func(t *testing.T, res *Soc2Resources, wg *sync.WaitGroup) {
		wg.Add(1)
		res.Vulnerability.AgentInstaller.Function.Environment.Variables().ApplyT(func(vars map[string]string) error {
			defer wg.Done()
			assert.Equal(t, "us-east-1", vars["REGION"])
			return nil
		})
	})
}

func TestKeysRotate(t *testing.T) {
	runStack(t, func(t *testing.T, res *Soc2Resources, wg *sync.WaitGroup) {
		wg.Add(1)
		pulumi.All(res.Encryption.GeneralKey.EnableKeyRotation, res.Encryption.S3Key.EnableKeyRotation).
			ApplyT(func(all []interface{}) error {
				defer wg.Done()
				assert.Equal(t, true, deref(all[0]))
				assert.Equal(t, true, deref(all[1]))
				return nil
			})
	})
}

func TestPasswordPolicy(t *testing.T) {
	runStack(t, func(t *testing.T, res *Soc2Resources, wg *sync.WaitGroup) {
		policy := res.Iam.PasswordPolicy

		wg.Add(1)
		pulumi.All(policy.MinimumPasswordLength, policy.MaxPasswordAge, policy.PasswordReusePrevention, policy.RequireSymbols).
			ApplyT(func(all []interface{}) error {
				defer wg.Done()
				assert.Equal(t, 14, deref(all[0]))
				assert.Equal(t, 90, deref(all[1]))
				assert.Equal(t, 24, deref(all[2]))
				assert.Equal(t, true, deref(all[3]))
				return nil
			})
	})
}

func TestDailyBackupRule(t *testing.T) {
	runStack(t, func(t *testing.T, res *Soc2Resources, wg *sync.WaitGroup) {
		wg.Add(1)
		pulumi.All(res.Backup.Vault.Name, res.Backup.Plan.Rules).ApplyT(func(all []interface{}) error {
			defer wg.Done()
			assert.Equal(t, "soc2-backup-vault", all[0].(string))

			rules := all[1].([]backup.PlanRule)
			if !assert.Len(t, rules, 1) {
				return nil
			}
			assert.Equal(t, "DailyBackup", rules[0].RuleName)
			assert.Equal(t, "cron(0 3 * * ? *)", deref(rules[0].Schedule))
			if !assert.NotNil(t, rules[0].Lifecycle) {
				return nil
			}
			assert.Equal(t, 30, deref(rules[0].Lifecycle.DeleteAfter))
			return nil
		})
	})
}

func TestTrailIsMultiRegion(t *testing.T) {
	runStack(t, func(t *testing.T, res *Soc2Resources, wg *sync.WaitGroup) {
		trail := res.Logging.Trail

		wg.Add(1)
		pulumi.All(trail.IsMultiRegionTrail, trail.IncludeGlobalServiceEvents, trail.EnableLogFileValidation).
			ApplyT(func(all []interface{}) error {
				defer wg.Done()
				for _, v := range all {
					assert.Equal(t, true, deref(v))
				}
				return nil
			})

		wg.Add(1)
		pulumi.All(res.Logging.ApplicationLogGroup.RetentionInDays).ApplyT(func(all []interface{}) error {
			defer wg.Done()
			assert.Equal(t, 365, deref(all[0]))
			return nil
		})
	})
}

func TestNetworkSpansTwoZones(t *testing.T) {
	runStack(t, func(t *testing.T, res *Soc2Resources, wg *sync.WaitGroup) {
		assert.Len(t, res.Network.PublicSubnets, 2)
		assert.Len(t, res.Network.PrivateSubnets, 2)
		assert.Nil(t, res.NetworkSecurity.Protection)

		wg.Add(1)
		pulumi.All(res.Network.PrivateSubnets[1].CidrBlock).ApplyT(func(all []interface{}) error {
			defer wg.Done()
			assert.Equal(t, "10.0.3.0/24", deref(all[0]))
			return nil
		})
	})
}

func TestShieldProtectionWhenEnabled(t *testing.T) {
	t.Setenv("PULUMI_CONFIG", `{"aws-soc2-settings:enableShieldAdvanced":"true"}`)
	runStack(t, func(t *testing.T, res *Soc2Resources, wg *sync.WaitGroup) {
		if !assert.NotNil(t, res.NetworkSecurity.Protection) {
			return
		}

		wg.Add(1)
		res.NetworkSecurity.Protection.ResourceArn.ApplyT(func(arn string) error {
			defer wg.Done()
			assert.Equal(t, "arn:aws:elasticloadbalancing:us-east-1:123456789012:loadbalancer/*", arn)
			return nil
		})
	})
}

func TestSubnetCidrs(t *testing.T) {
	public, private, err := subnetCidrs("10.0.0.0/16", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/24", "10.0.1.0/24"}, public)
	assert.Equal(t, []string{"10.0.2.0/24", "10.0.3.0/24"}, private)

	_, _, err = subnetCidrs("10.0.0.0/23", 2)
	assert.Error(t, err)

	_, _, err = subnetCidrs("not-a-cidr", 1)
	assert.Error(t, err)
}

func TestLoadBalancerPatternMatchesCloudTrailShape(t *testing.T) {
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(loadBalancerCreatedPattern.String()), &decoded))

	assert.Equal(t, []interface{}{"aws.elasticloadbalancing"}, decoded["source"])
	assert.Equal(t, []interface{}{"AWS API Call via CloudTrail"}, decoded["detail-type"])
	detail := decoded["detail"].(map[string]interface{})
	assert.Equal(t, []interface{}{"elasticloadbalancing.amazonaws.com"}, detail["eventSource"])
}
