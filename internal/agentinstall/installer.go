// Package agentinstall installs the Inspector agent on new EC2 instances once
// they have registered with Systems Manager.
package agentinstall

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/rs/zerolog"

	"github.com/NorthCoast-DevOps/aws-soc2-settings/internal/changeevent"
	"github.com/NorthCoast-DevOps/aws-soc2-settings/internal/logging"
	"github.com/NorthCoast-DevOps/aws-soc2-settings/internal/poll"
	"github.com/NorthCoast-DevOps/aws-soc2-settings/internal/settings"
)

// SSMAPI is the narrow Systems Manager interface used by the installer.
type SSMAPI interface {
	DescribeInstanceInformation(ctx context.Context, params *ssm.DescribeInstanceInformationInput, optFns ...func(*ssm.Options)) (*ssm.DescribeInstanceInformationOutput, error)
	SendCommand(ctx context.Context, params *ssm.SendCommandInput, optFns ...func(*ssm.Options)) (*ssm.SendCommandOutput, error)
}

// Outcome is the structured result of one invocation.
type Outcome struct {
	InstanceID string `json:"instanceId"`
	Attempts   int    `json:"attempts"`
	Ready      bool   `json:"ready"`
	CommandID  string `json:"commandId,omitempty"`
	Error      string `json:"error,omitempty"`

	Err error `json:"-"`
}

// Installer waits for an instance to be managed by SSM, then sends a single
// agent install command.
type Installer struct {
	ssm      SSMAPI
	ready    poll.Budget
	document string
	logger   zerolog.Logger
}

// NewInstaller creates an Installer.
func NewInstaller(cfg settings.AgentInstall, client SSMAPI, logger zerolog.Logger) (*Installer, error) {
	if client == nil {
		return nil, errors.New("SSM client is required")
	}
	document := cfg.DocumentName
	if document == "" {
		document = settings.DefaultAgentDocument
	}
	return &Installer{
		ssm:      client,
		ready:    cfg.Ready,
		document: document,
		logger:   logger,
	}, nil
}

// HandleCloudWatchEvent is the Lambda entry point for EC2 state-change
// notifications.
func (i *Installer) HandleCloudWatchEvent(ctx context.Context, e events.CloudWatchEvent) (Outcome, error) {
	change, err := changeevent.ParseInstanceStateChange(e)
	if err != nil {
		return Outcome{}, err
	}
	i.logger.Debug().Str("instanceId", change.InstanceID).Str("state", change.State).Msg("Received event")
	return i.Install(ctx, change.InstanceID)
}

// Install polls SSM until the instance is registered and then issues the
// install command once. An instance that never registers is not an error.
func (i *Installer) Install(ctx context.Context, instanceID string) (Outcome, error) {
	outcome := Outcome{InstanceID: instanceID}
	log := i.logger.With().Str(logging.FieldTarget, instanceID).Logger()

	attempts, err := poll.Until(ctx, i.ready, func(ctx context.Context) (bool, error) {
		return i.managed(ctx, instanceID)
	})
	outcome.Attempts = attempts
	switch {
	case errors.Is(err, poll.ErrNotReady):
		log.Warn().Int("attempts", attempts).Msg("Instance did not become available in Systems Manager. Skipping.")
		return outcome, nil
	case err != nil:
		return outcome, err
	}
	outcome.Ready = true

	out, err := i.ssm.SendCommand(ctx, &ssm.SendCommandInput{
		InstanceIds:  []string{instanceID},
		DocumentName: aws.String(i.document),
		Parameters: map[string][]string{
			"Operation": {"Install"},
		},
	})
	if err != nil {
		outcome.Err = err
		outcome.Error = err.Error()

		var invalid *ssmtypes.InvalidInstanceId
		if errors.As(err, &invalid) {
			log.Warn().Err(err).Str(logging.FieldOutcome, "deferred").
				Msg("Instance is not yet ready for SSM commands. The agent will be installed when the instance is fully initialized.")
			return outcome, nil
		}
		log.Error().Err(err).Str(logging.FieldOutcome, "failed").Msg("Error sending Inspector agent install command")
		return outcome, nil
	}

	if out.Command != nil {
		outcome.CommandID = aws.ToString(out.Command.CommandId)
	}
	log.Info().
		Str("commandId", outcome.CommandID).
		Str("document", i.document).
		Str(logging.FieldOutcome, "sent").
		Msg("Initiated Inspector agent installation")
	return outcome, nil
}

func (i *Installer) managed(ctx context.Context, instanceID string) (bool, error) {
	out, err := i.ssm.DescribeInstanceInformation(ctx, &ssm.DescribeInstanceInformationInput{
		Filters: []ssmtypes.InstanceInformationStringFilter{{
			Key:    aws.String("InstanceIds"),
			Values: []string{instanceID},
		}},
	})
	if err != nil {
		return false, fmt.Errorf("describe instance information: %w", err)
	}
	return len(out.InstanceInformationList) > 0, nil
}
