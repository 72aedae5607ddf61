package agentinstall

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NorthCoast-DevOps/aws-soc2-settings/internal/changeevent"
	"github.com/NorthCoast-DevOps/aws-soc2-settings/internal/logging"
	"github.com/NorthCoast-DevOps/aws-soc2-settings/internal/poll"
	"github.com/NorthCoast-DevOps/aws-soc2-settings/internal/settings"
)

const testInstance = "i-0123456789abcdef0"

// fakeSSM reports the instance as managed from readyOn onwards (1-based);
// zero means never.
type fakeSSM struct {
	readyOn     int
	describeErr error
	sendErr     error

	describes int
	commands  []*ssm.SendCommandInput
}

func (f *fakeSSM) DescribeInstanceInformation(_ context.Context, in *ssm.DescribeInstanceInformationInput, _ ...func(*ssm.Options)) (*ssm.DescribeInstanceInformationOutput, error) {
	f.describes++
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	out := &ssm.DescribeInstanceInformationOutput{}
	if f.readyOn > 0 && f.describes >= f.readyOn {
		out.InstanceInformationList = []ssmtypes.InstanceInformation{{
			InstanceId: aws.String(in.Filters[0].Values[0]),
		}}
	}
	return out, nil
}

func (f *fakeSSM) SendCommand(_ context.Context, in *ssm.SendCommandInput, _ ...func(*ssm.Options)) (*ssm.SendCommandOutput, error) {
	f.commands = append(f.commands, in)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &ssm.SendCommandOutput{Command: &ssmtypes.Command{CommandId: aws.String("cmd-1")}}, nil
}

func newInstaller(t *testing.T, client *fakeSSM, logs *bytes.Buffer) *Installer {
	t.Helper()
	i, err := NewInstaller(settings.AgentInstall{
		Region:       "us-east-1",
		Ready:        poll.Budget{Attempts: 30},
		DocumentName: settings.DefaultAgentDocument,
	}, client, logging.New(logs, "info"))
	require.NoError(t, err)
	return i
}

func TestInstallAfterReadyOnAttemptK(t *testing.T) {
	client := &fakeSSM{readyOn: 4}
	outcome, err := newInstaller(t, client, &bytes.Buffer{}).Install(context.Background(), testInstance)
	require.NoError(t, err)

	assert.Equal(t, 4, client.describes)
	assert.Equal(t, 4, outcome.Attempts)
	assert.True(t, outcome.Ready)
	assert.Equal(t, "cmd-1", outcome.CommandID)

	require.Len(t, client.commands, 1)
	cmd := client.commands[0]
	assert.Equal(t, []string{testInstance}, cmd.InstanceIds)
	assert.Equal(t, "AWSInspector-ManageAWSAgent", aws.ToString(cmd.DocumentName))
	assert.Equal(t, map[string][]string{"Operation": {"Install"}}, cmd.Parameters)
}

func TestInstallReadyOnLastAttempt(t *testing.T) {
	client := &fakeSSM{readyOn: 30}
	outcome, err := newInstaller(t, client, &bytes.Buffer{}).Install(context.Background(), testInstance)
	require.NoError(t, err)
	assert.True(t, outcome.Ready)
	assert.Len(t, client.commands, 1)
}

func TestInstallNeverReadySendsNothing(t *testing.T) {
	client := &fakeSSM{}
	var logs bytes.Buffer
	outcome, err := newInstaller(t, client, &logs).Install(context.Background(), testInstance)
	require.NoError(t, err)

	assert.Equal(t, 30, client.describes)
	assert.False(t, outcome.Ready)
	assert.Empty(t, client.commands)
	assert.Contains(t, logs.String(), "did not become available in Systems Manager")
}

func TestInstallDescribeErrorFailsInvocation(t *testing.T) {
	client := &fakeSSM{describeErr: errors.New("AccessDeniedException")}
	_, err := newInstaller(t, client, &bytes.Buffer{}).Install(context.Background(), testInstance)
	assert.Error(t, err)
	assert.Equal(t, 1, client.describes)
	assert.Empty(t, client.commands)
}

func TestInstallInvalidInstanceIsTolerated(t *testing.T) {
	client := &fakeSSM{readyOn: 1, sendErr: &ssmtypes.InvalidInstanceId{Message: aws.String("not ready")}}
	var logs bytes.Buffer
	outcome, err := newInstaller(t, client, &logs).Install(context.Background(), testInstance)
	require.NoError(t, err)

	assert.Len(t, client.commands, 1)
	var invalid *ssmtypes.InvalidInstanceId
	assert.ErrorAs(t, outcome.Err, &invalid)
	assert.Contains(t, logs.String(), "not yet ready for SSM commands")
}

func TestInstallOtherSendErrorIsNotRetried(t *testing.T) {
	client := &fakeSSM{readyOn: 1, sendErr: errors.New("throttled")}
	outcome, err := newInstaller(t, client, &bytes.Buffer{}).Install(context.Background(), testInstance)
	require.NoError(t, err)
	assert.Len(t, client.commands, 1)
	assert.Equal(t, "throttled", outcome.Error)
}

func TestHandleCloudWatchEvent(t *testing.T) {
	client := &fakeSSM{readyOn: 1}
	installer := newInstaller(t, client, &bytes.Buffer{})

	outcome, err := installer.HandleCloudWatchEvent(context.Background(), events.CloudWatchEvent{
		Source:     changeevent.SourceEC2,
		DetailType: "EC2 Instance State-change Notification",
		Detail:     json.RawMessage(`{"instance-id":"` + testInstance + `","state":"pending"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, testInstance, outcome.InstanceID)
	assert.Len(t, client.commands, 1)
}

func TestHandleCloudWatchEventWithoutInstance(t *testing.T) {
	client := &fakeSSM{readyOn: 1}
	_, err := newInstaller(t, client, &bytes.Buffer{}).HandleCloudWatchEvent(context.Background(), events.CloudWatchEvent{
		Detail: json.RawMessage(`{"state":"pending"}`),
	})
	assert.ErrorIs(t, err, changeevent.ErrMalformed)
	assert.Zero(t, client.describes)
}

func TestNewInstallerRequiresClient(t *testing.T) {
	_, err := NewInstaller(settings.AgentInstall{}, nil, logging.New(&bytes.Buffer{}, "info"))
	assert.Error(t, err)
}
