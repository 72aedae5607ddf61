// Package changeevent models the infrastructure-change notifications that
// EventBridge delivers to the automation Lambdas, and extracts the resource
// identifiers they carry.
package changeevent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// ErrMalformed is returned when an event does not have the shape its origin
// promises. Callers let it fail the invocation.
var ErrMalformed = errors.New("malformed change event")

// EventBridge sources and CloudTrail event names the handlers react to.
const (
	SourceLoadBalancing = "aws.elasticloadbalancing"
	SourceAPIGateway    = "aws.apigateway"
	SourceEC2           = "aws.ec2"

	EventCreateLoadBalancer = "CreateLoadBalancer"
	EventCreateRestAPI      = "CreateRestApi"
	EventCreateStage        = "CreateStage"
)

// Origin classifies which lifecycle a ChangeEvent belongs to.
type Origin string

const (
	OriginUnknown      Origin = ""
	OriginLoadBalancer Origin = "load-balancer"
	OriginAPIGateway   Origin = "api-gateway"
)

// Detail is the CloudTrail "AWS API Call" payload carried in an event.
type Detail struct {
	EventSource       string          `json:"eventSource"`
	EventName         string          `json:"eventName"`
	ResponseElements  json.RawMessage `json:"responseElements,omitempty"`
	RequestParameters json.RawMessage `json:"requestParameters,omitempty"`
}

// ChangeEvent is a single resource-lifecycle notification. It is never
// modified after parsing.
type ChangeEvent struct {
	Source string
	Region string
	Detail Detail
}

// FromCloudWatchEvent converts the EventBridge envelope into a ChangeEvent.
func FromCloudWatchEvent(e events.CloudWatchEvent) (ChangeEvent, error) {
	event := ChangeEvent{
		Source: e.Source,
		Region: e.Region,
	}
	if isEmpty(e.Detail) {
		return event, nil
	}
	if err := json.Unmarshal(e.Detail, &event.Detail); err != nil {
		return ChangeEvent{}, fmt.Errorf("%w: decode detail: %v", ErrMalformed, err)
	}
	return event, nil
}

// Origin reports the lifecycle the event belongs to. Either the envelope
// source or the CloudTrail event source is enough to classify it.
func (e ChangeEvent) Origin() Origin {
	switch {
	case e.Source == SourceLoadBalancing || strings.Contains(e.Detail.EventSource, "elasticloadbalancing"):
		return OriginLoadBalancer
	case e.Source == SourceAPIGateway || strings.Contains(e.Detail.EventSource, "apigateway"):
		return OriginAPIGateway
	default:
		return OriginUnknown
	}
}

// LoadBalancer is the subset of a CreateLoadBalancer response the
// association handler needs.
type LoadBalancer struct {
	ARN  string `json:"loadBalancerArn"`
	Type string `json:"type"`
}

// SupportsWebACL reports whether WAF can be attached to this kind of load
// balancer. Events that omit the type are treated as application load
// balancers, which is the CreateLoadBalancer default.
func (lb LoadBalancer) SupportsWebACL() bool {
	switch strings.ToLower(lb.Type) {
	case "", "application":
		return true
	default:
		return false
	}
}

// CreatedLoadBalancer returns the first load balancer in the response
// elements of a CreateLoadBalancer call.
func (e ChangeEvent) CreatedLoadBalancer() (LoadBalancer, error) {
	var resp struct {
		LoadBalancers []LoadBalancer `json:"loadBalancers"`
	}
	if err := decode(e.Detail.ResponseElements, &resp); err != nil {
		return LoadBalancer{}, fmt.Errorf("%w: responseElements: %v", ErrMalformed, err)
	}
	if len(resp.LoadBalancers) == 0 || resp.LoadBalancers[0].ARN == "" {
		return LoadBalancer{}, fmt.Errorf("%w: responseElements.loadBalancers[0].loadBalancerArn is missing", ErrMalformed)
	}
	return resp.LoadBalancers[0], nil
}

// RestAPIID returns the REST API identifier an API Gateway event refers to.
//
// CreateRestApi reports the new id in its response, while CreateStage only
// carries it in the request. The two locations are kept as CloudTrail
// records them.
func (e ChangeEvent) RestAPIID() (string, error) {
	switch e.Detail.EventName {
	case EventCreateRestAPI:
		var resp struct {
			ID string `json:"id"`
		}
		if err := decode(e.Detail.ResponseElements, &resp); err != nil {
			return "", fmt.Errorf("%w: responseElements: %v", ErrMalformed, err)
		}
		if resp.ID == "" {
			return "", fmt.Errorf("%w: responseElements.id is missing", ErrMalformed)
		}
		return resp.ID, nil
	case EventCreateStage:
		var req struct {
			RestAPIID string `json:"restApiId"`
		}
		if err := decode(e.Detail.RequestParameters, &req); err != nil {
			return "", fmt.Errorf("%w: requestParameters: %v", ErrMalformed, err)
		}
		if req.RestAPIID == "" {
			return "", fmt.Errorf("%w: requestParameters.restApiId is missing", ErrMalformed)
		}
		return req.RestAPIID, nil
	default:
		return "", fmt.Errorf("%w: unsupported API Gateway event %q", ErrMalformed, e.Detail.EventName)
	}
}

// RestAPIARN builds the ARN of a REST API.
func RestAPIARN(region, apiID string) string {
	return fmt.Sprintf("arn:aws:apigateway:%s::/restapis/%s", region, apiID)
}

// StageARN builds the ARN WAF expects for a REST API stage.
func StageARN(region, apiID, stageName string) string {
	return fmt.Sprintf("%s/stages/%s", RestAPIARN(region, apiID), stageName)
}

// InstanceStateChange is the detail of an "EC2 Instance State-change
// Notification".
type InstanceStateChange struct {
	InstanceID string `json:"instance-id"`
	State      string `json:"state"`
}

// ParseInstanceStateChange extracts the instance from an EC2 state-change
// event.
func ParseInstanceStateChange(e events.CloudWatchEvent) (InstanceStateChange, error) {
	var change InstanceStateChange
	if err := decode(e.Detail, &change); err != nil {
		return InstanceStateChange{}, fmt.Errorf("%w: detail: %v", ErrMalformed, err)
	}
	if change.InstanceID == "" {
		return InstanceStateChange{}, fmt.Errorf("%w: detail.instance-id is missing", ErrMalformed)
	}
	return change, nil
}

func decode(raw json.RawMessage, v any) error {
	if isEmpty(raw) {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func isEmpty(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
