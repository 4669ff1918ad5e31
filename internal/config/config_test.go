package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"sharpcover/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coverage.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFull(t *testing.T) {
	path := writeConfig(t, `
assemblies = ["app.cmod", "lib.cmod"]
type_include = "^App\\."
type_exclude = "Generated"
method_include = ".*"
method_exclude = "::get_"

[[method_exclusion]]
method  = "App.Program::Main(string[])"
offsets = [4, 12]
lines   = ["  throw new Exception();  "]
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Assemblies) != 2 {
		t.Errorf("got %d assemblies, want 2", len(cfg.Assemblies))
	}
	if !cfg.TypeInclude.MatchString("App.Program") {
		t.Error("type include does not match App.Program")
	}
	if !cfg.TypeExclude.MatchString("App.GeneratedThing") {
		t.Error("type exclude does not match generated type")
	}
	if !cfg.MethodExclude.MatchString("App.Program::get_Name()") {
		t.Error("method exclude does not match property getter")
	}

	excl, ok := cfg.ExclusionFor("App.Program::Main(string[])")
	if !ok {
		t.Fatal("exclusion table missing")
	}
	if _, ok := excl.Offsets[12]; !ok {
		t.Error("excluded offset 12 missing")
	}
	// Line texts are stored trimmed.
	if _, ok := excl.Lines["throw new Exception();"]; !ok {
		t.Error("excluded line not trimmed on load")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `assemblies = ["app.cmod"]`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Nil patterns mean include-all, exclude-none.
	if cfg.TypeInclude != nil || cfg.TypeExclude != nil {
		t.Error("empty type patterns should stay nil")
	}
	if cfg.MethodInclude != nil || cfg.MethodExclude != nil {
		t.Error("empty method patterns should stay nil")
	}
}

func TestLoadRejectsEmptyAssemblies(t *testing.T) {
	_, err := config.Load(writeConfig(t, `assemblies = []`))
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("got %v, want ErrInvalid", err)
	}
}

func TestLoadRejectsBadPattern(t *testing.T) {
	_, err := config.Load(writeConfig(t, `
assemblies = ["app.cmod"]
type_include = "([unclosed"
`))
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("got %v, want ErrInvalid", err)
	}
}

func TestLoadRejectsNamelessExclusion(t *testing.T) {
	_, err := config.Load(writeConfig(t, `
assemblies = ["app.cmod"]
[[method_exclusion]]
offsets = [1]
`))
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("got %v, want ErrInvalid", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil {
		t.Fatal("expected an error for a missing configuration file")
	}
}
