// Package settings loads the Lambda configuration from the process
// environment once, at cold start, into explicit values that are injected
// into the handlers.
package settings

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/NorthCoast-DevOps/aws-soc2-settings/internal/poll"
)

// Environment keys.
const (
	KeyWebACLArn          = "WEB_ACL_ARN"
	KeyRegion             = "REGION"
	KeyAWSRegion          = "AWS_REGION"
	KeyLogLevel           = "LOG_LEVEL"
	KeyLBReadyAttempts    = "LB_READY_ATTEMPTS"
	KeyLBReadyInterval    = "LB_READY_INTERVAL"
	KeyAPISettleDelay     = "API_SETTLE_DELAY"
	KeyAgentReadyAttempts = "AGENT_READY_ATTEMPTS"
	KeyAgentReadyInterval = "AGENT_READY_INTERVAL"
	KeyAgentDocumentName  = "AGENT_DOCUMENT_NAME"
)

// DefaultAgentDocument installs or updates the Inspector agent through SSM.
const DefaultAgentDocument = "AWSInspector-ManageAWSAgent"

// ErrMissing is returned when a required variable is unset.
var ErrMissing = errors.New("required environment variable not set")

// Association configures the WAF auto-association handler.
type Association struct {
	// WebACLArn is the protection policy attached to every new target.
	WebACLArn string
	// Region is used to build stage ARNs when the event does not carry one.
	Region            string
	LoadBalancerReady poll.Budget
	APISettleDelay    time.Duration
}

// AgentInstall configures the Inspector agent installer.
type AgentInstall struct {
	Region       string
	Ready        poll.Budget
	DocumentName string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLBReadyAttempts, 12)
	v.SetDefault(KeyLBReadyInterval, 10*time.Second)
	v.SetDefault(KeyAPISettleDelay, 10*time.Second)
	v.SetDefault(KeyAgentReadyAttempts, 30)
	v.SetDefault(KeyAgentReadyInterval, 10*time.Second)
	v.SetDefault(KeyAgentDocumentName, DefaultAgentDocument)
	return v
}

// LogLevel returns the configured log level name.
func LogLevel() string {
	return newViper().GetString(KeyLogLevel)
}

// LoadAssociation reads the association handler settings.
func LoadAssociation() (Association, error) {
	v := newViper()

	s := Association{
		WebACLArn: v.GetString(KeyWebACLArn),
		Region:    v.GetString(KeyAWSRegion),
		LoadBalancerReady: poll.Budget{
			Attempts: v.GetInt(KeyLBReadyAttempts),
			Interval: v.GetDuration(KeyLBReadyInterval),
		},
		APISettleDelay: v.GetDuration(KeyAPISettleDelay),
	}
	if s.WebACLArn == "" {
		return Association{}, fmt.Errorf("%w: %s", ErrMissing, KeyWebACLArn)
	}
	if s.LoadBalancerReady.Attempts < 1 {
		return Association{}, fmt.Errorf("%s must be at least 1, got %d", KeyLBReadyAttempts, s.LoadBalancerReady.Attempts)
	}
	return s, nil
}

// LoadAgentInstall reads the agent installer settings. REGION wins over the
// AWS_REGION the Lambda runtime sets.
func LoadAgentInstall() (AgentInstall, error) {
	v := newViper()

	region := v.GetString(KeyRegion)
	if region == "" {
		region = v.GetString(KeyAWSRegion)
	}
	s := AgentInstall{
		Region: region,
		Ready: poll.Budget{
			Attempts: v.GetInt(KeyAgentReadyAttempts),
			Interval: v.GetDuration(KeyAgentReadyInterval),
		},
		DocumentName: v.GetString(KeyAgentDocumentName),
	}
	if s.Region == "" {
		return AgentInstall{}, fmt.Errorf("%w: %s", ErrMissing, KeyRegion)
	}
	if s.Ready.Attempts < 1 {
		return AgentInstall{}, fmt.Errorf("%s must be at least 1, got %d", KeyAgentReadyAttempts, s.Ready.Attempts)
	}
	return s, nil
}
