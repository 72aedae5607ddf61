// Package association attaches the account's WAF Web ACL to load balancers
// and API Gateway stages as they are created.
package association

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/wafv2"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/NorthCoast-DevOps/aws-soc2-settings/internal/changeevent"
	"github.com/NorthCoast-DevOps/aws-soc2-settings/internal/logging"
	"github.com/NorthCoast-DevOps/aws-soc2-settings/internal/poll"
	"github.com/NorthCoast-DevOps/aws-soc2-settings/internal/settings"
)

// WebACLAPI is the narrow WAFv2 interface used to attach the Web ACL.
type WebACLAPI interface {
	AssociateWebACL(ctx context.Context, params *wafv2.AssociateWebACLInput, optFns ...func(*wafv2.Options)) (*wafv2.AssociateWebACLOutput, error)
}

// StagesAPI is the narrow API Gateway interface used to enumerate stages.
type StagesAPI interface {
	GetStages(ctx context.Context, params *apigateway.GetStagesInput, optFns ...func(*apigateway.Options)) (*apigateway.GetStagesOutput, error)
}

// LoadBalancerAPI is the narrow ELBv2 interface used for the readiness poll.
type LoadBalancerAPI interface {
	DescribeLoadBalancers(ctx context.Context, params *elasticloadbalancingv2.DescribeLoadBalancersInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeLoadBalancersOutput, error)
}

// Clients bundles the AWS clients the handler calls.
type Clients struct {
	WAF          WebACLAPI
	APIGateway   StagesAPI
	LoadBalancer LoadBalancerAPI
}

// NewClients creates production clients from an AWS config.
func NewClients(cfg aws.Config) Clients {
	return Clients{
		WAF:          wafv2.NewFromConfig(cfg),
		APIGateway:   apigateway.NewFromConfig(cfg),
		LoadBalancer: elasticloadbalancingv2.NewFromConfig(cfg),
	}
}

var errLoadBalancerFailed = errors.New("load balancer provisioning failed")

// Handler reacts to resource-creation events. It holds only immutable state
// and is safe for concurrent invocations.
type Handler struct {
	webACLArn         string
	region            string
	loadBalancerReady poll.Budget
	apiSettleDelay    time.Duration
	clients           Clients
	logger            zerolog.Logger

	wait func(ctx context.Context, d time.Duration) error
}

// NewHandler builds a Handler bound to a single Web ACL.
func NewHandler(cfg settings.Association, clients Clients, logger zerolog.Logger) (*Handler, error) {
	if cfg.WebACLArn == "" {
		return nil, fmt.Errorf("web ACL ARN is required")
	}
	if clients.WAF == nil || clients.APIGateway == nil || clients.LoadBalancer == nil {
		return nil, fmt.Errorf("all AWS clients are required")
	}
	return &Handler{
		webACLArn:         cfg.WebACLArn,
		region:            cfg.Region,
		loadBalancerReady: cfg.LoadBalancerReady,
		apiSettleDelay:    cfg.APISettleDelay,
		clients:           clients,
		logger:            logger,
		wait:              poll.Wait,
	}, nil
}

// HandleCloudWatchEvent is the Lambda entry point.
func (h *Handler) HandleCloudWatchEvent(ctx context.Context, e events.CloudWatchEvent) (Report, error) {
	event, err := changeevent.FromCloudWatchEvent(e)
	if err != nil {
		return Report{}, err
	}
	return h.Handle(ctx, event)
}

// Handle attaches the Web ACL to every target the event implies. Association
// failures are reported, logged and swallowed; only malformed events and
// cancellation are returned as errors.
func (h *Handler) Handle(ctx context.Context, event changeevent.ChangeEvent) (Report, error) {
	origin := event.Origin()
	report := Report{Origin: origin}

	var err error
	switch origin {
	case changeevent.OriginLoadBalancer:
		h.logger.Debug().Str("source", event.Source).Str("eventName", event.Detail.EventName).Msg("Received event")
		err = h.handleLoadBalancer(ctx, event, &report)
	case changeevent.OriginAPIGateway:
		h.logger.Debug().Str("source", event.Source).Str("eventName", event.Detail.EventName).Msg("Received event")
		err = h.handleAPIGateway(ctx, event, &report)
	}
	return report, err
}

func (h *Handler) handleLoadBalancer(ctx context.Context, event changeevent.ChangeEvent, report *Report) error {
	lb, err := event.CreatedLoadBalancer()
	if err != nil {
		return err
	}

	if !lb.SupportsWebACL() {
		h.logger.Info().
			Str(logging.FieldTarget, lb.ARN).
			Str("type", lb.Type).
			Str(logging.FieldOutcome, string(OutcomeSkipped)).
			Msg("Load balancer type cannot carry a WAF Web ACL, skipping")
		report.add(Attempt{Target: lb.ARN, Kind: KindLoadBalancer, Outcome: OutcomeSkipped})
		return nil
	}

	attempts, err := poll.Until(ctx, h.loadBalancerReady, func(ctx context.Context) (bool, error) {
		return h.loadBalancerActive(ctx, lb.ARN)
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		report.add(h.failed(lb.ARN, KindLoadBalancer, "wait for load balancer", err))
		return nil
	}
	h.logger.Debug().Str(logging.FieldTarget, lb.ARN).Int("attempts", attempts).Msg("Load balancer is active")

	report.add(h.associate(ctx, lb.ARN, KindLoadBalancer))
	return nil
}

func (h *Handler) loadBalancerActive(ctx context.Context, arn string) (bool, error) {
	out, err := h.clients.LoadBalancer.DescribeLoadBalancers(ctx, &elasticloadbalancingv2.DescribeLoadBalancersInput{
		LoadBalancerArns: []string{arn},
	})
	if err != nil {
		var notFound *elbv2types.LoadBalancerNotFoundException
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("describe load balancer: %w", err)
	}
	if len(out.LoadBalancers) == 0 || out.LoadBalancers[0].State == nil {
		return false, nil
	}

	switch out.LoadBalancers[0].State.Code {
	case elbv2types.LoadBalancerStateEnumActive, elbv2types.LoadBalancerStateEnumActiveImpaired:
		return true, nil
	case elbv2types.LoadBalancerStateEnumFailed:
		return false, errLoadBalancerFailed
	default:
		return false, nil
	}
}

func (h *Handler) handleAPIGateway(ctx context.Context, event changeevent.ChangeEvent, report *Report) error {
	apiID, err := event.RestAPIID()
	if err != nil {
		return err
	}
	region := event.Region
	if region == "" {
		region = h.region
	}

	// Stages expose no readiness state, so the settle delay stays fixed.
	if err := h.wait(ctx, h.apiSettleDelay); err != nil {
		return err
	}

	out, err := h.clients.APIGateway.GetStages(ctx, &apigateway.GetStagesInput{
		RestApiId: aws.String(apiID),
	})
	if err != nil {
		report.add(h.failed(changeevent.RestAPIARN(region, apiID), KindAPIStage, "get stages", err))
		return nil
	}
	if len(out.Item) == 0 {
		h.logger.Info().Str("restApiId", apiID).Msg("REST API has no stages yet")
		return nil
	}

	for _, stage := range out.Item {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := aws.ToString(stage.StageName)
		if name == "" {
			continue
		}
		report.add(h.associate(ctx, changeevent.StageARN(region, apiID, name), KindAPIStage))
	}
	return nil
}

func (h *Handler) associate(ctx context.Context, target string, kind TargetKind) Attempt {
	_, err := h.clients.WAF.AssociateWebACL(ctx, &wafv2.AssociateWebACLInput{
		WebACLArn:   aws.String(h.webACLArn),
		ResourceArn: aws.String(target),
	})
	if err != nil {
		return h.failed(target, kind, "associate web ACL", err)
	}

	h.logger.Info().
		Str(logging.FieldTarget, target).
		Str(logging.FieldPolicy, h.webACLArn).
		Str("kind", string(kind)).
		Str(logging.FieldOutcome, string(OutcomeAssociated)).
		Msg("Associated WAF Web ACL")
	return Attempt{Target: target, Kind: kind, Outcome: OutcomeAssociated}
}

func (h *Handler) failed(target string, kind TargetKind, op string, err error) Attempt {
	bestEffort := &BestEffortError{Target: target, Op: op, Err: err}

	entry := h.logger.Error().
		Err(err).
		Str(logging.FieldTarget, target).
		Str(logging.FieldPolicy, h.webACLArn).
		Str("kind", string(kind)).
		Str(logging.FieldOutcome, string(OutcomeFailed))
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		entry = entry.Str(logging.FieldCode, apiErr.ErrorCode())
	}
	entry.Msgf("Error associating WAF Web ACL: %s failed", op)

	return Attempt{
		Target:  target,
		Kind:    kind,
		Outcome: OutcomeFailed,
		Error:   bestEffort.Error(),
		Err:     bestEffort,
	}
}
