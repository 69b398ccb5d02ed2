package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zerotau/zerotau/config"
)

func TestDefaultTuningMatchesPackageConstants(t *testing.T) {
	d := config.Default()
	assert.Equal(t, config.PingCheckInterval, d.PingCheckInterval)
	assert.Equal(t, config.HousekeepingPeriod, d.HousekeepingPeriod)
	assert.Equal(t, config.NetworkAutoconfDelay, d.NetworkAutoconfDelay)
	assert.Equal(t, config.CoreTimerGranularity, d.CoreTimerGranularity)
}

func TestInactivityResetMatchesPackageLevelHelper(t *testing.T) {
	assert.Equal(t, config.InactivityResetThreshold(), config.Default().InactivityReset())
}

func TestNewOptionsResolvesToDefaultTuning(t *testing.T) {
	opts := config.NewOptions()
	assert.Equal(t, config.Default(), opts.Resolved())
}

func TestZeroValueOptionsResolveToDefaultTuning(t *testing.T) {
	var opts config.Options
	assert.Equal(t, config.Default(), opts.Resolved())
}

func TestOverriddenTuningIsPreserved(t *testing.T) {
	opts := config.NewOptions()
	opts.Tuning.PingCheckInterval = 5 * time.Second
	assert.Equal(t, 5*time.Second, opts.Resolved().PingCheckInterval)
}
