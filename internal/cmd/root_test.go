package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harrison/streamfmt/internal/filelock"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	toolCallLine   = `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Bash","input":{"command":"ls -la"}}]}}`
	toolResultLine = `{"type":"user","message":{"content":[{"type":"tool_result","content":"ok","is_error":false}]}}`
	resultLine     = `{"type":"result","subtype":"success","result":"done","num_turns":3,"duration_ms":1500,"total_cost_usd":0.123456}`
)

// execute runs the root command with an isolated home directory.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("STREAMFMT_HOME", t.TempDir())

	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	if cmd == nil {
		t.Fatal("Root command should not be nil")
	}
	if !strings.HasPrefix(cmd.Use, "streamfmt") {
		t.Errorf("Expected Use to start with 'streamfmt', got '%s'", cmd.Use)
	}

	out, _, err := execute(t, "", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "transcript")
	assert.Contains(t, out, "--follow")
}

func TestVersionFlag(t *testing.T) {
	out, _, err := execute(t, "", "--version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestRender_Stdin(t *testing.T) {
	stdin := toolCallLine + "\nnot json\n" + toolResultLine + "\n" + resultLine + "\n"

	out, stderr, err := execute(t, stdin)
	require.NoError(t, err)

	want := "\n▶️  Tool Call: Bash\n   Command: ls -la\n" +
		"\n◀️  Tool Result:\n   Status: ✅ SUCCESS\n   Output: \n     | ok\n" +
		strings.Repeat("*", 50) + "\n\n🏁 Final Result:\n   done\n" +
		"   Turns: 3, Duration: 1500ms, Cost: $0.123456\n" +
		strings.Repeat("*", 50) + "\n"
	assert.Equal(t, want, out)
	assert.Empty(t, stderr, "skipped lines are silent at the default level")
}

func TestRender_Files(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.jsonl")
	require.NoError(t, os.WriteFile(first, []byte(toolCallLine), 0644))

	second := filepath.Join(dir, "b.jsonl.gz")
	f, err := os.Create(second)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(toolResultLine + "\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	out, _, err := execute(t, "", first, second)
	require.NoError(t, err)

	assert.Contains(t, out, "Tool Call: Bash")
	assert.Contains(t, out, "Tool Result:")
	assert.Less(t, strings.Index(out, "Tool Call"), strings.Index(out, "Tool Result"))
}

func TestRender_MissingFile(t *testing.T) {
	_, _, err := execute(t, "", filepath.Join(t.TempDir(), "nope.jsonl"))
	assert.Error(t, err)
}

func TestRender_Output(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.txt")

	out, _, err := execute(t, toolCallLine+"\n", "--output", path)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, _, err = execute(t, toolResultLine+"\n", "-o", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Tool Call: Bash")
	assert.Contains(t, string(data), "Tool Result:")
}

func TestRender_OutputLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.txt")
	holder := filelock.NewFileLock(path + ".lock")
	require.NoError(t, holder.Lock())
	defer holder.Unlock()

	_, _, err := execute(t, toolCallLine+"\n", "--output", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, filelock.ErrLocked)
}

func TestRender_Color(t *testing.T) {
	out, _, err := execute(t, toolCallLine+"\n", "--color", "always")
	require.NoError(t, err)
	assert.Contains(t, out, "\x1b[")

	out, _, err = execute(t, toolCallLine+"\n", "--color", "never")
	require.NoError(t, err)
	assert.NotContains(t, out, "\x1b[")

	// auto never colors a buffer.
	out, _, err = execute(t, toolCallLine+"\n")
	require.NoError(t, err)
	assert.NotContains(t, out, "\x1b[")
}

func TestRender_InvalidFlags(t *testing.T) {
	_, _, err := execute(t, "", "--color", "rainbow")
	assert.ErrorContains(t, err, "invalid configuration")

	_, _, err = execute(t, "", "--log-level", "loud")
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestRender_FollowArgs(t *testing.T) {
	_, _, err := execute(t, "", "--follow")
	assert.ErrorContains(t, err, "exactly one input file")

	_, _, err = execute(t, "", "--follow", "a.jsonl", "b.jsonl")
	assert.ErrorContains(t, err, "exactly one input file")

	_, _, err = execute(t, "", "--follow", "session.jsonl.zst")
	assert.ErrorContains(t, err, "zstd")
}

func TestRender_Stats(t *testing.T) {
	_, stderr, err := execute(t, toolCallLine+"\ngarbage\n", "--stats")
	require.NoError(t, err)
	assert.Contains(t, stderr, "streamfmt: lines: 2, rendered: 1, silent: 0, malformed: 1, skipped: 0")
}

func TestRender_DebugLogging(t *testing.T) {
	_, stderr, err := execute(t, "garbage\n", "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, stderr, "skipping non-JSON line")
	assert.Contains(t, stderr, "line=1")
}

func TestRender_LogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "streamfmt.log")

	_, stderr, err := execute(t, "garbage\n", "--log-level", "debug", "--log-file", logPath)
	require.NoError(t, err)
	assert.Empty(t, stderr)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "skipping non-JSON line")
}

func TestRender_ConfigFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("color: always\n"), 0644))

	out, _, err := execute(t, toolCallLine+"\n", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "\x1b[")

	// Flags win over the file.
	out, _, err = execute(t, toolCallLine+"\n", "--config", cfgPath, "--color", "never")
	require.NoError(t, err)
	assert.NotContains(t, out, "\x1b[")
}

func TestRender_ConfigFromHome(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte("log_level: debug\n"), 0644))

	cmd := NewRootCommand()
	t.Setenv("STREAMFMT_HOME", home)
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader("garbage\n"))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(nil)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, stderr.String(), "skipping non-JSON line")
}

func TestRender_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.jsonl"), []byte(toolCallLine+"\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "2.jsonl"), []byte(resultLine+"\n"), 0644))

	out, _, err := execute(t, "", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Tool Call: Bash")
	assert.NotContains(t, out, "Final Result")

	out, _, err = execute(t, "", "-r", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Final Result")

	_, _, err = execute(t, "", t.TempDir())
	assert.ErrorContains(t, err, "no session files")

	_, _, err = execute(t, "", "--follow", dir)
	assert.ErrorContains(t, err, "is a directory")
}

func TestRender_MaxDepth(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "1.jsonl"), []byte(toolCallLine+"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "b", "2.jsonl"), []byte(resultLine+"\n"), 0644))

	out, _, err := execute(t, "", "-r", "--max-depth", "2", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Tool Call: Bash")
	assert.NotContains(t, out, "Final Result")

	out, _, err = execute(t, "", "-r", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Final Result")

	_, _, err = execute(t, "", "-r", "--max-depth", "-1", dir)
	assert.ErrorContains(t, err, "--max-depth")
}

func TestRender_WaitLock(t *testing.T) {
	t.Setenv("STREAMFMT_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "transcript.txt")

	holder, err := filelock.OpenAppend(path)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		cmd := NewRootCommand()
		cmd.SetIn(strings.NewReader(toolCallLine + "\n"))
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--wait-lock", "-o", path})
		done <- cmd.Execute()
	}()

	select {
	case err := <-done:
		t.Fatalf("command finished while the output was locked: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	_, err = holder.WriteString("earlier run\n")
	require.NoError(t, err)
	require.NoError(t, holder.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("command did not proceed after the lock was released")
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "earlier run\n"))
	assert.Contains(t, string(data), "Tool Call: Bash")
}
