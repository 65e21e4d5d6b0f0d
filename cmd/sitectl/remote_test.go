package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// execRemote runs "sitectl remote <args>" and returns its output.
func execRemote(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"remote"}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRemotesConfig_SaveLoad(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	in := RemotesConfig{
		Active: "prod",
		Remotes: map[string]Remote{
			"prod":    {URL: "https://site.example.com", GRPCAddr: "site.example.com:9090", NATSURL: "nats://prod:4222"},
			"staging": {URL: "http://localhost:3000"},
		},
	}
	if err := saveRemotesConfig(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Active != "prod" || got.Remotes["prod"] != in.Remotes["prod"] {
		t.Errorf("loaded %+v", got)
	}
	if names := got.Names(); len(names) != 2 || names[0] != "prod" || names[1] != "staging" {
		t.Errorf("Names = %v", names)
	}
}

func TestLoadRemotesConfig_Missing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Active != "" || cfg.Remotes == nil || len(cfg.Remotes) != 0 {
		t.Errorf("expected empty config with non-nil map, got %+v", cfg)
	}
}

func TestLoadRemotesConfig_Corrupt(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path, _ := remoteConfigPath()
	if err := os.WriteFile(path, []byte("active = [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadRemotesConfig(); err == nil {
		t.Fatal("expected error for corrupt file")
	}
}

func TestSaveRemotesConfig_FileModes(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := saveRemotesConfig(RemotesConfig{Remotes: map[string]Remote{}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	path, _ := remoteConfigPath()
	for p, want := range map[string]os.FileMode{path: 0o600, filepath.Dir(path): 0o700} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if got := info.Mode().Perm(); got != want {
			t.Errorf("%s mode = %04o, want %04o", p, got, want)
		}
	}
}

func TestRemotesConfig_UseRemove(t *testing.T) {
	cfg := RemotesConfig{Remotes: map[string]Remote{"a": {URL: "http://a"}}}

	if _, _, err := cfg.Lookup(""); err == nil {
		t.Error("Lookup without active should fail")
	}
	if err := cfg.Use("ghost"); err == nil {
		t.Error("Use of unknown remote should fail")
	}
	if err := cfg.Use("a"); err != nil || cfg.Active != "a" {
		t.Fatalf("Use: %v, active %q", err, cfg.Active)
	}
	if name, r, err := cfg.Lookup(""); err != nil || name != "a" || r.URL != "http://a" {
		t.Errorf("Lookup active = %q %+v %v", name, r, err)
	}
	if err := cfg.Remove("a"); err != nil || cfg.Active != "" || len(cfg.Remotes) != 0 {
		t.Errorf("Remove: %v, cfg %+v", err, cfg)
	}
	if err := cfg.Remove("a"); err == nil {
		t.Error("second Remove should fail")
	}
}

func TestRemoteCommands(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	run := func(args ...string) string {
		t.Helper()
		out, err := execRemote(t, args...)
		if err != nil {
			t.Fatalf("remote %v: %v", args, err)
		}
		return out
	}

	run("add", "local", "http://localhost:3000", "--grpc", "localhost:9191")
	run("add", "local", "http://localhost:3001")
	run("use", "local")

	cfg, _ := loadRemotesConfig()
	if cfg.Active != "local" || cfg.Remotes["local"].URL != "http://localhost:3001" {
		t.Fatalf("config after add/use = %+v", cfg)
	}

	if out := run("list"); !strings.Contains(out, "* local") || !strings.Contains(out, "http://localhost:3001") {
		t.Errorf("list output:\n%s", out)
	}
	if out := run("show"); !strings.Contains(out, "local (active)") || !strings.Contains(out, "nats_url:  -") {
		t.Errorf("show output:\n%s", out)
	}

	run("remove", "local")
	cfg, _ = loadRemotesConfig()
	if _, ok := cfg.Remotes["local"]; ok || cfg.Active != "" {
		t.Errorf("config after remove = %+v", cfg)
	}
	if out := run("list"); !strings.Contains(out, "no remotes configured") {
		t.Errorf("list after remove:\n%s", out)
	}
}

func TestRemoteCommands_Errors(t *testing.T) {
	for _, args := range [][]string{
		{"use", "ghost"},
		{"remove", "ghost"},
		{"show"},
		{"show", "ghost"},
		{"add", "only-name"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			if _, err := execRemote(t, args...); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}
