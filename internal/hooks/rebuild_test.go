package hooks

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExec(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		name    string
		command string
		dir     string
		env     Env
		want    string
		wantErr bool
	}{
		{name: "Stdout", command: "echo hello", want: "hello"},
		{name: "Stderr", command: "echo oops >&2; exit 3", want: "oops", wantErr: true},
		{name: "Env", command: `echo "$SITE_CONFIG_VERSION $SITE_CONFIG_PATH"`, env: Env{Version: 7, ConfigPath: "/tmp/site-config.json"}, want: "7 /tmp/site-config.json"},
		{name: "UnsetPaths", command: `echo "[${SITE_THEME_PATH-unset}]"`, want: "[unset]"},
		{name: "Dir", command: "pwd -P", dir: dir, want: dir},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("SITE_THEME_PATH", "")
			os.Unsetenv("SITE_THEME_PATH")
			res := Exec(context.Background(), tc.command, 0, tc.dir, tc.env)
			if (res.Err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", res.Err, tc.wantErr)
			}
			if res.Output != tc.want {
				t.Errorf("output = %q, want %q", res.Output, tc.want)
			}
		})
	}
}

func TestExec_Timeout(t *testing.T) {
	start := time.Now()
	res := Exec(context.Background(), "sleep 5", 100*time.Millisecond, "", Env{})
	if res.Err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("timeout not enforced, took %v", time.Since(start))
	}
}

func TestExec_TruncatesOutput(t *testing.T) {
	res := Exec(context.Background(), "head -c 10000 /dev/zero | tr '\\0' a; echo END", 0, "", Env{})
	if len(res.Output) > outputLimit || !strings.HasSuffix(res.Output, "END") {
		t.Errorf("output len %d, want <= %d ending in END", len(res.Output), outputLimit)
	}
}

func TestRunner_Disabled(t *testing.T) {
	r := NewRunner("  ", 0, "", nil)
	if r.Enabled() {
		t.Error("blank command should be disabled")
	}
	if res := r.Run(context.Background(), Env{}); res.Err != nil || res.Output != "" {
		t.Errorf("disabled Run = %+v", res)
	}
	r.Trigger(Env{})
	r.Wait()

	var nilRunner *Runner
	if nilRunner.Enabled() {
		t.Error("nil runner should be disabled")
	}
	nilRunner.Trigger(Env{})
	nilRunner.Wait()
}

func TestRunner_TriggerCoalesces(t *testing.T) {
	dir := t.TempDir()
	gate := filepath.Join(dir, "gate")
	out := filepath.Join(dir, "versions")
	// Each run blocks until the gate file exists.
	cmd := `while [ ! -f ` + gate + ` ]; do sleep 0.01; done; echo "$SITE_CONFIG_VERSION" >> ` + out
	r := NewRunner(cmd, 5*time.Second, "", quietLogger())

	r.Trigger(Env{Version: 1})
	r.Trigger(Env{Version: 2})
	r.Trigger(Env{Version: 3})
	if err := os.WriteFile(gate, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	r.Wait()

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Fields(string(data)); len(got) != 2 || got[0] != "1" || got[1] != "3" {
		t.Errorf("ran versions %q, want [1 3]", got)
	}
}
