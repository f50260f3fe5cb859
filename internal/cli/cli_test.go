package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmmcquay/sgfrender/internal/config"
	"github.com/dmmcquay/sgfrender/internal/logging"
	"github.com/dmmcquay/sgfrender/internal/pipeline"
	"github.com/dmmcquay/sgfrender/internal/shutdown"
)

const captureGame = "(;GM[1]SZ[5]PB[Black]PW[White];B[aa];W[ba];B[cc];W[ab])"

// run executes the command tree with a quiet, file-free configuration.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SGFRENDER_CONFIG", "")
	t.Setenv("SGFRENDER_LOGGING_LEVEL", "error")

	var out bytes.Buffer
	root := Root(BuildInfo{GitCommit: "abc123", BuildTime: "today"})
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&out)

	err := root.Execute()
	return out.String(), err
}

func writeRecord(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "game.sgf")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "sgfrender 0.1.0")
	assert.Contains(t, out, "Git commit: abc123")
}

func TestRenderHelpDescribesKifu(t *testing.T) {
	out, err := run(t, "", "render", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "still on the board is labelled")
	assert.NotContains(t, out, "below the board")
}

func TestRenderToStdout(t *testing.T) {
	out, err := run(t, captureGame, "render", "--cell-size", "20")
	require.NoError(t, err)

	img, err := png.Decode(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 140, img.Bounds().Dx())
}

func TestRenderToFile(t *testing.T) {
	in := writeRecord(t, captureGame)
	outPath := filepath.Join(t.TempDir(), "board.png")

	_, err := run(t, "", "render", in, "-o", outPath, "--theme", "paper", "--kifu", "--move", "2")
	require.NoError(t, err)

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	// Default cell size of 40 on a 5x5 board.
	assert.Equal(t, 280, img.Bounds().Dx())
}

func TestRenderErrors(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		args    []string
		wantErr string
	}{
		{"unknown theme", captureGame, []string{"render", "--theme", "sepia"}, "unknown theme"},
		{"malformed record", "(;B[", []string{"render"}, "parse error"},
		{"illegal move", "(;SZ[5];B[aa];W[aa])", []string{"render"}, "occupied point"},
		{"bad cell size", captureGame, []string{"render", "--cell-size", "3"}, "cellSize"},
		{"missing file", "", []string{"render", "/no/such/game.sgf"}, "failed to read game record"},
		{"too many args", "", []string{"render", "a.sgf", "b.sgf"}, "accepts at most 1 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.stdin, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDescribe(t *testing.T) {
	out, err := run(t, captureGame, "describe")
	require.NoError(t, err)
	assert.Contains(t, out, "Board: 5x5")
	assert.Contains(t, out, "Players: Black (B) vs White (W)")
	assert.Contains(t, out, "Captures: black 0, white 1")
}

func TestDescribeJSONAtMove(t *testing.T) {
	out, err := run(t, captureGame, "describe", "--json", "--move", "3")
	require.NoError(t, err)

	var desc pipeline.Description
	require.NoError(t, json.Unmarshal([]byte(out), &desc))
	assert.Equal(t, 3, desc.MoveIndex)
	assert.Equal(t, 4, desc.TotalMoves)
	assert.Equal(t, 3, desc.Stones)
	assert.Equal(t, "cc", desc.LastMove)
}

func TestDescribeBoardSizeFallback(t *testing.T) {
	out, err := run(t, "(;B[aa])", "describe", "--board-size", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "Board: 9x9")
}

func TestThemes(t *testing.T) {
	out, err := run(t, "", "themes")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "dark"))
	assert.Contains(t, lines[0], "(default)")
	assert.NotContains(t, lines[1], "(default)")
}

func TestThemesHonoursConfig(t *testing.T) {
	t.Setenv("SGFRENDER_RENDER_THEME", "paper")
	out, err := run(t, "", "themes")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], "paper")
	assert.Contains(t, lines[2], "(default)")
}

func TestBadConfigFile(t *testing.T) {
	_, err := run(t, "", "--config", "/no/such/config.yaml", "themes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func testApp(t *testing.T) *app {
	t.Helper()
	t.Setenv("SGFRENDER_CONFIG", "")
	cfg, err := config.Load("")
	require.NoError(t, err)
	return &app{cfg: cfg, logger: logging.NewNopLogger(), build: BuildInfo{GitCommit: "test"}}
}

func TestBuildStack(t *testing.T) {
	a := testApp(t)
	a.cfg.Server.HTTPAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sd := shutdown.NewManager(a.logger)

	st, err := a.buildStack(ctx, sd)
	require.NoError(t, err)
	require.NotNil(t, st.http)
	assert.Equal(t, "memory", st.cache.Backend())

	health := st.checker.CheckHealth(ctx)
	assert.Equal(t, "healthy", string(health.Status))
	assert.Len(t, health.Components, 3)

	// Readiness renders must not go through the serving cache.
	st.checker.CheckHealth(ctx)
	stats := st.cache.Stats()
	assert.Zero(t, stats.Hits+stats.Misses)
	assert.Zero(t, stats.Items)

	resp := st.mcp.HandleMessage(ctx, json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, tool := range []string{"renderGame", "describeGame", "listThemes", "serverStatus"} {
		assert.Contains(t, string(data), tool)
	}

	require.NoError(t, sd.Shutdown(5*time.Second))
}

func TestBuildStackWithoutHTTP(t *testing.T) {
	a := testApp(t)
	a.cfg.Server.HTTPAddr = ""
	a.cfg.Cache.Enabled = false

	sd := shutdown.NewManager(a.logger)
	st, err := a.buildStack(context.Background(), sd)
	require.NoError(t, err)
	assert.Nil(t, st.http)
	assert.Equal(t, "disabled", st.cache.Backend())
	assert.Len(t, st.checker.CheckHealth(context.Background()).Components, 2)
	require.NoError(t, sd.Shutdown(5*time.Second))
}

func TestConnectCacheFallsBackToMemory(t *testing.T) {
	cfg := &config.CacheConfig{
		Enabled:         true,
		Backend:         "redis",
		RedisAddr:       "127.0.0.1:1",
		MaxItems:        10,
		TTLSeconds:      60,
		ConnectAttempts: 1,
	}

	m := connectCache(context.Background(), cfg, logging.NewNopLogger())
	defer m.Close()
	assert.True(t, m.IsEnabled())
	assert.Equal(t, "memory", m.Backend())
}
