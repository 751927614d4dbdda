package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, key := range []string{"GROQ_API_KEY", "GOOGLE_API_KEY", "GOOGLE_APPLICATION_CREDENTIALS", "ANTHROPIC_API_KEY", "JARVIS_CONFIG_FILE", "JARVIS_TTS_COMMAND"} {
		t.Setenv(key, "")
	}
	t.Setenv("JARVIS_MEMORY_BACKEND", "memory")
	t.Setenv("JARVIS_CHROMA_DIR", dir)
	t.Setenv("APP_METRICS_NAMESPACE", "test_cli_"+strings.ToLower(strings.ReplaceAll(t.Name(), "/", "_")))
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigListsOptions(t *testing.T) {
	out, err := execute(t, "", "config")
	if err != nil {
		t.Fatalf("config error = %v", err)
	}
	for _, key := range []string{"JARVIS_DRY_RUN", "GROQ_API_KEY", "JARVIS_WAKE_WORD"} {
		if !strings.Contains(out, key) {
			t.Fatalf("config output missing %s:\n%s", key, out)
		}
	}
}

func TestInteractiveDryRun(t *testing.T) {
	setTestEnv(t)
	out, err := execute(t, "hello there\nquit\n", "--dry-run", "--no-audio")
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	if !strings.Contains(out, "I am Jarvis. How can I assist?") {
		t.Fatalf("missing greeting:\n%s", out)
	}
	if !strings.Contains(out, "Jarvis: [dry-run] Groq simulated response") {
		t.Fatalf("missing simulated reply:\n%s", out)
	}
	if !strings.Contains(out, "Jarvis: Goodbye, Sir.") {
		t.Fatalf("missing farewell:\n%s", out)
	}
}

func TestBackgroundAnswersAfterWakeWord(t *testing.T) {
	setTestEnv(t)
	t.Setenv("JARVIS_WAKE_POLL_INTERVAL", "10ms")
	out, err := execute(t, "hey friday\nhey computer\nwhat time is it\n", "--dry-run", "--background", "--wake-token", "computer")
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	if !strings.Contains(out, backgroundNotice) {
		t.Fatalf("missing background notice:\n%s", out)
	}
	if !strings.Contains(out, "Jarvis: Yes?") || !strings.Contains(out, "Jarvis: [dry-run] Groq simulated response") {
		t.Fatalf("wake word did not start a command:\n%s", out)
	}
}

func TestWakeWordFlagEnablesBackgroundMode(t *testing.T) {
	setTestEnv(t)
	t.Setenv("JARVIS_WAKE_POLL_INTERVAL", "10ms")
	t.Setenv("JARVIS_WAKE_WORD", "jarvis")
	out, err := execute(t, "ok jarvis\nhello\n", "--dry-run", "--wake-word")
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	if !strings.Contains(out, backgroundNotice) {
		t.Fatalf("--wake-word did not start background mode:\n%s", out)
	}
	if strings.Contains(out, "I am Jarvis. How can I assist?") {
		t.Fatalf("background mode must not greet:\n%s", out)
	}
	if !strings.Contains(out, "Jarvis: Yes?") || !strings.Contains(out, "Jarvis: Shutting down background listener.") {
		t.Fatalf("unexpected background output:\n%s", out)
	}
}

func TestInvalidFlagValueIsRejected(t *testing.T) {
	setTestEnv(t)
	t.Setenv("JARVIS_DEEP_PROVIDER", "cohere")
	if _, err := execute(t, "", "--dry-run"); err == nil {
		t.Fatalf("expected a config error for an unknown deep provider")
	}
}

func TestMemoryExportImport(t *testing.T) {
	dir := setTestEnv(t)
	exportFile := filepath.Join(t.TempDir(), "memories.json")

	raw := `[{"id":"a","text":"user: my dog is rex","metadata":{"type":"user"}}]`
	if _, err := execute(t, raw, "memory", "import"); err != nil {
		t.Fatalf("import error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "memories.json")); err != nil {
		t.Fatalf("import did not persist a snapshot: %v", err)
	}

	if _, err := execute(t, "", "memory", "export", "--out", exportFile); err != nil {
		t.Fatalf("export error = %v", err)
	}
	data, err := os.ReadFile(exportFile)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "my dog is rex") {
		t.Fatalf("export missing imported memory: %s", data)
	}
}
