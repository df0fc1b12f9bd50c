package template

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRender(t *testing.T) {
	params := Params{
		"config": map[string]any{
			"project": map[string]any{"name": "relpo"},
		},
	}.With("platform", struct{ Name string }{"linux-64"})

	got, err := Render("env", "{{ .config.project.name }}-{{ .platform.Name }}", params)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got != "relpo-linux-64" {
		t.Errorf("Render() = %q, want relpo-linux-64", got)
	}
}

func TestRender_MissingKey(t *testing.T) {
	params := Params{"config": map[string]any{"project": map[string]any{}}}

	if _, err := Render("env", "{{ .config.project.name }}", params); err == nil {
		t.Error("Render() should fail on an unknown variable")
	}
	if _, err := Render("env", "{{ .nothing }}", params); err == nil {
		t.Error("Render() should fail on an unknown top level variable")
	}
}

func TestRenderFile(t *testing.T) {
	t.Setenv("RELPO_TEST_USER", "alice")
	path := filepath.Join(t.TempDir(), "relpo.yml")
	if err := os.WriteFile(path, []byte(`user: {{ index .env "RELPO_TEST_USER" }}`), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := RenderFile(path, BaseParams())
	if err != nil {
		t.Fatalf("RenderFile() error = %v", err)
	}
	if got != "user: alice" {
		t.Errorf("RenderFile() = %q", got)
	}
}

func TestWith_DoesNotMutate(t *testing.T) {
	base := Params{"a": 1}
	_ = base.With("b", 2)
	if _, ok := base["b"]; ok {
		t.Error("With() mutated the receiver")
	}
}
