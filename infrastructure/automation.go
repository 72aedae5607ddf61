package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/cloudwatch"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/iam"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/lambda"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/NorthCoast-DevOps/aws-soc2-settings/internal/changeevent"
)

const cloudTrailDetailType = "AWS API Call via CloudTrail"

// eventPattern is the subset of the EventBridge pattern grammar the
// automation rules use.
type eventPattern struct {
	Source     []string       `json:"source"`
	DetailType []string       `json:"detail-type"`
	Detail     map[string]any `json:"detail,omitempty"`
}

func (p eventPattern) String() string {
	b, err := json.Marshal(p)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func cloudTrailPattern(source, eventSource string, eventNames ...string) eventPattern {
	return eventPattern{
		Source:     []string{source},
		DetailType: []string{cloudTrailDetailType},
		Detail: map[string]any{
			"eventSource": []string{eventSource},
			"eventName":   eventNames,
		},
	}
}

var (
	loadBalancerCreatedPattern = cloudTrailPattern(
		changeevent.SourceLoadBalancing,
		"elasticloadbalancing.amazonaws.com",
		changeevent.EventCreateLoadBalancer,
	)
	apiGatewayCreatedPattern = cloudTrailPattern(
		changeevent.SourceAPIGateway,
		"apigateway.amazonaws.com",
		changeevent.EventCreateRestAPI, changeevent.EventCreateStage,
	)
	instancePendingPattern = eventPattern{
		Source:     []string{changeevent.SourceEC2},
		DetailType: []string{"EC2 Instance State-change Notification"},
		Detail: map[string]any{
			"state": []string{"pending"},
		},
	}
)

// eventRuleArgs names one EventBridge rule that invokes an automation function.
type eventRuleArgs struct {
	name        string
	description string
	pattern     eventPattern
}

// eventFunctionArgs describes a Go Lambda triggered by EventBridge rules.
type eventFunctionArgs struct {
	artifact    string
	description string
	memorySize  int
	timeout     int
	environment pulumi.StringMap
	policy      string
	rules       []eventRuleArgs
}

// EventFunction holds a Lambda function and the rules that trigger it
type EventFunction struct {
	Role     *iam.Role
	Function *lambda.Function
	Rules    map[string]*cloudwatch.EventRule
}

// createEventFunction creates an execution role with the given inline policy,
// the function itself, and one rule, target and invoke permission per trigger.
func createEventFunction(ctx *pulumi.Context, name string, cfg StackConfig, args eventFunctionArgs) (*EventFunction, error) {
	role, err := iam.NewRole(ctx, name+"-role", &iam.RoleArgs{
		AssumeRolePolicy: assumeRolePolicy("lambda.amazonaws.com"),
		Tags: pulumi.StringMap{
			"Name": pulumi.String(name + "-role"),
		},
	})
	if err != nil {
		return nil, err
	}

	_, err = iam.NewRolePolicyAttachment(ctx, name+"-basic-execution", &iam.RolePolicyAttachmentArgs{
		Role:      role.Name,
		PolicyArn: pulumi.String("arn:aws:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"),
	})
	if err != nil {
		return nil, err
	}

	_, err = iam.NewRolePolicy(ctx, name+"-policy", &iam.RolePolicyArgs{
		Role:   role.Name,
		Policy: pulumi.String(args.policy),
	})
	if err != nil {
		return nil, err
	}

	function, err := lambda.NewFunction(ctx, name, &lambda.FunctionArgs{
		Runtime:     pulumi.String("provided.al2"),
		Code:        pulumi.NewFileArchive(filepath.Join(cfg.LambdaArtifactDir, args.artifact+".zip")),
		Handler:     pulumi.String("bootstrap"),
		Role:        role.Arn,
		Description: pulumi.String(args.description),
		MemorySize:  pulumi.Int(args.memorySize),
		Timeout:     pulumi.Int(args.timeout),
		Architectures: pulumi.StringArray{
			pulumi.String("arm64"),
		},
		Environment: &lambda.FunctionEnvironmentArgs{
			Variables: args.environment,
		},
		Tags: pulumi.StringMap{
			"Name": pulumi.String(name),
		},
	})
	if err != nil {
		return nil, err
	}

	rules := make(map[string]*cloudwatch.EventRule, len(args.rules))
	for _, r := range args.rules {
		rule, err := cloudwatch.NewEventRule(ctx, r.name, &cloudwatch.EventRuleArgs{
			Description:  pulumi.String(r.description),
			EventPattern: pulumi.String(r.pattern.String()),
			Tags: pulumi.StringMap{
				"Name": pulumi.String(r.name),
			},
		})
		if err != nil {
			return nil, err
		}

		_, err = cloudwatch.NewEventTarget(ctx, r.name+"-target", &cloudwatch.EventTargetArgs{
			Rule: rule.Name,
			Arn:  function.Arn,
		})
		if err != nil {
			return nil, err
		}

		_, err = lambda.NewPermission(ctx, r.name+"-permission", &lambda.PermissionArgs{
			Action:    pulumi.String("lambda:InvokeFunction"),
			Function:  function.Name,
			Principal: pulumi.String("events.amazonaws.com"),
			SourceArn: rule.Arn,
		})
		if err != nil {
			return nil, fmt.Errorf("allow %s to invoke %s: %w", r.name, name, err)
		}
		rules[r.name] = rule
	}

	return &EventFunction{
		Role:     role,
		Function: function,
		Rules:    rules,
	}, nil
}
