package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/config"
	"github.com/souravMitra02/volunteer-project-server/internal/usecase/reconcile"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type stubRunner struct {
	got    reconcile.Options
	report *reconcile.Report
	err    error
}

func (s *stubRunner) Run(ctx context.Context, opts reconcile.Options) (*reconcile.Report, error) {
	s.got = opts
	return s.report, s.err
}

func stubNewRunner(t *testing.T, r *stubRunner, cfg *config.ReconcileConfig) *bool {
	t.Helper()
	orig := newRunner
	t.Cleanup(func() { newRunner = orig })
	closed := false
	newRunner = func(ctx context.Context, logger *zap.Logger) (runner, *config.ReconcileConfig, func() error, error) {
		return r, cfg, func() error { closed = true; return nil }, nil
	}
	return &closed
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(zaptest.NewLogger(t))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_UsesConfiguredGrace(t *testing.T) {
	r := &stubRunner{report: &reconcile.Report{Scanned: 2, Activated: 2}}
	closed := stubNewRunner(t, r, &config.ReconcileConfig{Grace: 10 * time.Minute})

	out, err := execute(t)
	require.NoError(t, err)
	require.Equal(t, 10*time.Minute, r.got.Grace)
	require.False(t, r.got.DryRun)
	require.Contains(t, out, "scanned=2 activated=2")
	require.True(t, *closed)
}

func TestRootCmd_FlagsOverride(t *testing.T) {
	r := &stubRunner{report: &reconcile.Report{Scanned: 1}}
	stubNewRunner(t, r, &config.ReconcileConfig{Grace: 10 * time.Minute})

	_, err := execute(t, "--grace", "30s", "--dry-run", "--concurrency", "8")
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, r.got.Grace)
	require.True(t, r.got.DryRun)
	require.Equal(t, 8, r.got.Concurrency)
}

func TestRootCmd_Failures(t *testing.T) {
	r := &stubRunner{report: &reconcile.Report{Scanned: 1, Failed: 1}}
	stubNewRunner(t, r, &config.ReconcileConfig{})
	_, err := execute(t)
	require.Error(t, err)

	r = &stubRunner{err: errors.New("store down")}
	stubNewRunner(t, r, &config.ReconcileConfig{})
	_, err = execute(t)
	require.Error(t, err)

	_, err = execute(t, "extra")
	require.Error(t, err)
}
