package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigInitWritesSampleOnce(t *testing.T) {
	env := newCLIEnv(t)
	target := filepath.Join(t.TempDir(), "nested", "scenecast.toml")

	out := env.mustRun(t, "config", "init", "--path", target)
	expectContains(t, out, "Wrote sample configuration to "+target)
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	expectContains(t, string(data), "speech_concurrency")

	err = env.mustFail(t, "config", "init", "--path", target)
	expectContains(t, err.Error(), "--overwrite")

	env.mustRun(t, "config", "init", "--path", target, "--overwrite")
}

func TestResolveInitTarget(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	target, err := resolveInitTarget("  ")
	if err != nil {
		t.Fatalf("resolveInitTarget default: %v", err)
	}
	if want := filepath.Join(home, ".config", "scenecast", "config.toml"); target != want {
		t.Fatalf("expected %s, got %s", want, target)
	}

	target, err = resolveInitTarget("~/alt.toml")
	if err != nil {
		t.Fatalf("resolveInitTarget home: %v", err)
	}
	if want := filepath.Join(home, "alt.toml"); target != want {
		t.Fatalf("expected %s, got %s", want, target)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	env := newCLIEnv(t)
	env.cfg.Providers.APIKey = "provider-secret"
	env.cfg.Paths.APIToken = "token-secret"
	rewriteConfig(t, env)

	out := env.mustRun(t, "config", "show")
	expectContains(t, out, "# source: "+env.configPath, "speech_concurrency", "********")
	expectNotContains(t, out, "provider-secret", "token-secret")

	out = env.mustRun(t, "config", "show", "--show-secrets")
	expectContains(t, out, "provider-secret")
}

func TestLogsPrintsCurrentRunLog(t *testing.T) {
	env := newCLIEnv(t)
	target := filepath.Join(env.cfg.Paths.LogDir, "scenecast-run.log")
	if err := os.WriteFile(target, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	if err := os.Symlink(target, filepath.Join(env.cfg.Paths.LogDir, "scenecast.log")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	if out := env.mustRun(t, "logs", "-n", "2"); out != "two\nthree\n" {
		t.Fatalf("expected last two lines, got %q", out)
	}
}
