package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/settingsearch/internal/config"
	"github.com/Aman-CERP/settingsearch/internal/index"
)

func TestStartRefreshJob_DisabledInterval(t *testing.T) {
	// Given: an app whose refresh interval is disabled
	cfg := config.NewConfig()
	cfg.Index.RefreshInterval = "0"
	a := &app{cfg: cfg}

	// When: scheduling the refresh job
	scheduler, err := startRefreshJob(context.Background(), a)

	// Then: nothing is scheduled
	require.NoError(t, err)
	assert.Nil(t, scheduler)
}

func TestStartRefreshJob_SchedulesJob(t *testing.T) {
	// Given: an app with an hourly refresh
	cfg := config.NewConfig()
	cfg.Index.RefreshInterval = "1h"
	a := &app{cfg: cfg}

	// When: scheduling the refresh job
	scheduler, err := startRefreshJob(context.Background(), a)

	// Then: one job is registered
	require.NoError(t, err)
	require.NotNil(t, scheduler)
	t.Cleanup(func() { _ = scheduler.Shutdown() })
	assert.Len(t, scheduler.Jobs(), 1)
}

func TestLogPass_HandlesBothOutcomes(t *testing.T) {
	// Given: a completion callback
	done := logPass(context.Background(), "test")

	// When/Then: success and failure are logged without panicking
	assert.NotPanics(t, func() {
		done(&index.PassResult{PassID: "p1", Rows: 2}, nil)
		done(nil, errors.New("boom"))
	})
}

func TestPassRequest_DefaultsBuildToBinary(t *testing.T) {
	// Given: an app without a configured build fingerprint
	cfg := config.NewConfig()
	a := &app{cfg: cfg}

	// When: building a full pass request
	req := a.passRequest(true)

	// Then: the locale is configured and the build comes from the binary
	assert.Equal(t, "en_US", req.Locale)
	assert.NotEmpty(t, req.BuildFingerprint)
	assert.True(t, req.ForceFull)

	// And: a configured fingerprint wins
	cfg.Index.BuildFingerprint = "custom"
	assert.Equal(t, "custom", a.passRequest(false).BuildFingerprint)
}
