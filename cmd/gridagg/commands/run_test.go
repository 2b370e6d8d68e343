package commands

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gridagg/pkg/config"
	"github.com/Sumatoshi-tech/gridagg/pkg/grid"
	"github.com/Sumatoshi-tech/gridagg/pkg/observability"
	"github.com/Sumatoshi-tech/gridagg/pkg/pipeline"
	"github.com/Sumatoshi-tech/gridagg/pkg/rank"
	"github.com/Sumatoshi-tech/gridagg/pkg/report"
)

const lvInput = `Power plant;HV-B Station;HV-A Station;LV Station;Company;Individual;Capacity;Load
1;-;1;1;-;-;100;40.0
1;-;1;2;-;-;200;150.0
1;-;1;1;-;-;50;10.0
1;-;1;3;-;-;10;-
1;-;1;;-;-;10;5
1;-;1;4;-;-;;5
1;-;1;5;-;-;12
`

type workspace struct {
	config string
	in     string
	out    string
}

func newWorkspace(t *testing.T, configContent string) workspace {
	t.Helper()

	root := t.TempDir()
	ws := workspace{
		config: filepath.Join(root, "gridagg.yaml"),
		in:     filepath.Join(root, "tmp"),
		out:    filepath.Join(root, "output"),
	}

	require.NoError(t, os.WriteFile(ws.config, []byte(configContent), 0o600))
	require.NoError(t, os.MkdirAll(ws.in, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(ws.in, "filter_lv_all.csv"), []byte(lvInput), 0o600))

	return ws
}

func (ws workspace) args(extra ...string) []string {
	args := []string{
		"--config", ws.config,
		"--input-dir", ws.in,
		"--output-dir", ws.out,
	}
	args = append(args, extra...)

	return append(args, "lv", "all", "-1")
}

func execute(t *testing.T, cmd *cobra.Command, args []string) (stdout, stderr string, err error) {
	t.Helper()

	root := &cobra.Command{Use: "gridagg", SilenceUsage: true, SilenceErrors: true}
	AddPersistentFlags(root)
	root.AddCommand(cmd)

	var out, errOut bytes.Buffer

	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"run"}, args...))

	err = root.ExecuteContext(context.Background())

	return out.String(), errOut.String(), err
}

type capturingRunner struct {
	opts pipeline.Options
	deps pipeline.Deps
	res  pipeline.Result
	err  error
}

func (c *capturingRunner) run(_ context.Context, opts pipeline.Options, deps pipeline.Deps) (pipeline.Result, error) {
	c.opts = opts
	c.deps = deps

	return c.res, c.err
}

func TestRunCommand_EndToEnd(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, "")

	stdout, stderr, err := execute(t, NewRunCommand(), ws.args("--no-color"))
	require.NoError(t, err)

	assert.Contains(t, stdout, "lv/all: 4 stations from 8 lines (3 skipped)")
	assert.Contains(t, stdout, "Largest difference")
	assert.Contains(t, stdout, "wrote "+filepath.Join(ws.out, "sorted_lv_all.csv"))

	assert.FileExists(t, filepath.Join(ws.out, "sorted_lv_all.csv"))
	assert.FileExists(t, filepath.Join(ws.out, "top10_lv_all.csv"))
	assert.FileExists(t, filepath.Join(ws.out, "bottom10_lv_all.csv"))
	assert.FileExists(t, filepath.Join(ws.out, "chart_lv_all.html"))
	assert.FileExists(t, filepath.Join(ws.out, "plot_lv_all.gp"))

	assert.Contains(t, stderr, "malformed lines skipped")
	assert.Contains(t, stderr, "run_id=")
}

func TestRunCommand_SilentJSONLogs(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, "")

	stdout, stderr, err := execute(t, NewRunCommand(), ws.args("--silent", "--log-json", "--verify"))
	require.NoError(t, err)

	assert.Empty(t, stdout)
	assert.Contains(t, stderr, `"msg":"run completed"`)
}

func TestRunCommand_FlagsOverrideConfig(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, "report:\n  limit: 4\n  sort_by: capacity\noutput:\n  format: yaml\n")
	cr := &capturingRunner{}

	_, _, err := execute(t, newRunCommandWithDeps(cr.run, observability.Init), ws.args(
		"--sort", "difference",
		"--limit", "3",
		"--extremal", "always",
		"--compress",
		"--gnuplot",
		"--no-html",
		"--verify",
		"--silent",
		"--input", "/data/custom.csv",
	))
	require.NoError(t, err)

	assert.Equal(t, grid.TierLV, cr.opts.Selection.Tier)
	assert.Equal(t, grid.AllPlants, cr.opts.Selection.PlantID)
	assert.Equal(t, ws.in, cr.opts.InputDir)
	assert.Equal(t, ws.out, cr.opts.OutputDir)
	assert.Equal(t, "/data/custom.csv", cr.opts.InputPath)
	assert.Equal(t, rank.Difference, cr.opts.SortBy)
	assert.Equal(t, 3, cr.opts.Limit)
	assert.Equal(t, config.ExtremalAlways, cr.opts.Extremal)
	assert.Equal(t, report.FormatYAML, cr.opts.Format)
	assert.True(t, cr.opts.Compress)
	assert.True(t, cr.opts.Gnuplot)
	assert.False(t, cr.opts.HTML)
	assert.True(t, cr.opts.Verify)

	assert.NotNil(t, cr.deps.Logger)
	assert.NotNil(t, cr.deps.Tracer)
	assert.NotNil(t, cr.deps.Metrics)
}

func TestRunCommand_ConfigUsedWithoutFlags(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, "report:\n  limit: 4\nplot:\n  html: false\n")
	cr := &capturingRunner{}

	_, _, err := execute(t, newRunCommandWithDeps(cr.run, observability.Init),
		[]string{"--config", ws.config, "--silent", "hva", "indiv", "2"})
	require.NoError(t, err)

	assert.Equal(t, 4, cr.opts.Limit)
	assert.False(t, cr.opts.HTML)
	assert.Equal(t, config.DefaultInputDirectory, cr.opts.InputDir)
	assert.Equal(t, rank.Capacity, cr.opts.SortBy)
	assert.Equal(t, 2, cr.opts.Selection.PlantID)
}

func TestRunCommand_InvalidSelection(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, "")

	_, _, err := execute(t, NewRunCommand(), []string{"--config", ws.config, "mv", "all", "-1"})
	require.ErrorIs(t, err, grid.ErrInvalidSelection)

	_, _, err = execute(t, NewRunCommand(), []string{"--config", ws.config, "lv", "all", "x"})
	require.ErrorIs(t, err, grid.ErrInvalidSelection)
}

func TestRunCommand_InvalidFlagValue(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, "")

	_, _, err := execute(t, NewRunCommand(), ws.args("--sort", "load"))
	require.ErrorIs(t, err, config.ErrInvalidSortBy)

	_, _, err = execute(t, NewRunCommand(), ws.args("--limit", "-2"))
	require.ErrorIs(t, err, config.ErrInvalidLimit)
}

func TestRunCommand_WrongArgCount(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, NewRunCommand(), []string{"lv", "all"})
	require.Error(t, err)

	_, _, err = execute(t, NewRunCommand(), []string{"lv", "all", "-1", "--limit", "3"})
	require.Error(t, err)
}

func TestRunCommand_PipelineErrorPropagates(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, "")
	boom := errors.New("disk full")
	cr := &capturingRunner{err: boom}

	_, _, err := execute(t, newRunCommandWithDeps(cr.run, observability.Init), ws.args())
	require.ErrorIs(t, err, boom)
}

func TestRunCommand_MissingInput(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, "")

	_, _, err := execute(t, NewRunCommand(), []string{
		"--config", ws.config, "--input-dir", ws.in, "--output-dir", ws.out, "hvb", "comp", "-1",
	})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunCommand_DiagnosticsServer(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, "telemetry:\n  diagnostics_addr: \"127.0.0.1:0\"\n")

	_, stderr, err := execute(t, NewRunCommand(), ws.args("--silent"))
	require.NoError(t, err)
	assert.Contains(t, stderr, "diagnostics listening")
}

func readyzStatus(t *testing.T, addr string) int {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://"+addr+"/readyz", http.NoBody)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	return resp.StatusCode
}

func TestRunCommand_ReadyAfterIndexBuilt(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, "telemetry:\n  diagnostics_addr: \"127.0.0.1:0\"\n")

	var logs bytes.Buffer

	initObs := func(cfg observability.Config) (observability.Providers, error) {
		cfg.LogOutput = &logs

		return observability.Init(cfg)
	}

	addrPattern := regexp.MustCompile(`addr=(\S+)`)

	var before, after int

	runner := func(_ context.Context, _ pipeline.Options, deps pipeline.Deps) (pipeline.Result, error) {
		m := addrPattern.FindStringSubmatch(logs.String())
		require.Len(t, m, 2)

		before = readyzStatus(t, m[1])

		require.NotNil(t, deps.PhaseDone)
		deps.PhaseDone(pipeline.PhaseBuild)

		after = readyzStatus(t, m[1])

		return pipeline.Result{}, nil
	}

	_, _, err := execute(t, newRunCommandWithDeps(runner, initObs), ws.args("--silent"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusServiceUnavailable, before)
	assert.Equal(t, http.StatusOK, after)
}
