package settings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAssociationDefaults(t *testing.T) {
	t.Setenv(KeyWebACLArn, "arn:aws:wafv2:us-east-1:111122223333:regional/webacl/soc2/abc")
	t.Setenv(KeyAWSRegion, "us-east-1")

	s, err := LoadAssociation()
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:wafv2:us-east-1:111122223333:regional/webacl/soc2/abc", s.WebACLArn)
	assert.Equal(t, "us-east-1", s.Region)
	assert.Equal(t, 12, s.LoadBalancerReady.Attempts)
	assert.Equal(t, 10*time.Second, s.LoadBalancerReady.Interval)
	assert.Equal(t, 10*time.Second, s.APISettleDelay)
}

func TestLoadAssociationOverrides(t *testing.T) {
	t.Setenv(KeyWebACLArn, "arn:test")
	t.Setenv(KeyLBReadyAttempts, "3")
	t.Setenv(KeyLBReadyInterval, "250ms")
	t.Setenv(KeyAPISettleDelay, "1m")

	s, err := LoadAssociation()
	require.NoError(t, err)
	assert.Equal(t, 3, s.LoadBalancerReady.Attempts)
	assert.Equal(t, 250*time.Millisecond, s.LoadBalancerReady.Interval)
	assert.Equal(t, time.Minute, s.APISettleDelay)
}

func TestLoadAssociationRequiresWebACL(t *testing.T) {
	t.Setenv(KeyWebACLArn, "")

	_, err := LoadAssociation()
	assert.ErrorIs(t, err, ErrMissing)
}

func TestLoadAssociationRejectsZeroAttempts(t *testing.T) {
	t.Setenv(KeyWebACLArn, "arn:test")
	t.Setenv(KeyLBReadyAttempts, "0")

	_, err := LoadAssociation()
	assert.Error(t, err)
}

func TestLoadAgentInstall(t *testing.T) {
	t.Setenv(KeyRegion, "ap-southeast-1")
	t.Setenv(KeyAWSRegion, "us-east-1")

	s, err := LoadAgentInstall()
	require.NoError(t, err)
	assert.Equal(t, "ap-southeast-1", s.Region)
	assert.Equal(t, 30, s.Ready.Attempts)
	assert.Equal(t, 10*time.Second, s.Ready.Interval)
	assert.Equal(t, DefaultAgentDocument, s.DocumentName)
}

func TestLoadAgentInstallFallsBackToRuntimeRegion(t *testing.T) {
	t.Setenv(KeyRegion, "")
	t.Setenv(KeyAWSRegion, "eu-central-1")

	s, err := LoadAgentInstall()
	require.NoError(t, err)
	assert.Equal(t, "eu-central-1", s.Region)
}

func TestLoadAgentInstallRequiresRegion(t *testing.T) {
	t.Setenv(KeyRegion, "")
	t.Setenv(KeyAWSRegion, "")

	_, err := LoadAgentInstall()
	assert.ErrorIs(t, err, ErrMissing)
}

func TestLogLevel(t *testing.T) {
	t.Setenv(KeyLogLevel, "")
	assert.Equal(t, "info", LogLevel())

	t.Setenv(KeyLogLevel, "debug")
	assert.Equal(t, "debug", LogLevel())
}
