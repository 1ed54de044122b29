package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnv(t *testing.T) {
	// Создаем временный каталог для тестов
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		content  string
		setupEnv map[string]string
		wantEnv  map[string]string
	}{
		{
			name: "valid .env file",
			content: `
# Comment line
DONGGLE_KEY1=value1
DONGGLE_KEY2=value2

DONGGLE_KEY3="value with spaces"
`,
			wantEnv: map[string]string{
				"DONGGLE_KEY1": "value1",
				"DONGGLE_KEY2": "value2",
				"DONGGLE_KEY3": "value with spaces",
			},
		},
		{
			name:    "empty file",
			content: "",
			wantEnv: map[string]string{},
		},
		{
			name: "existing variables are kept",
			content: `
DONGGLE_TOKEN=from-file
`,
			setupEnv: map[string]string{"DONGGLE_TOKEN": "from-env"},
			wantEnv:  map[string]string{"DONGGLE_TOKEN": "from-env"},
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.setupEnv {
				t.Setenv(k, v)
			}
			for k := range tt.wantEnv {
				if _, set := tt.setupEnv[k]; !set {
					t.Setenv(k, "")
					os.Unsetenv(k)
				}
			}

			path := filepath.Join(tmpDir, ".env"+string(rune('a'+i)))
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("failed to write env file: %v", err)
			}

			if err := LoadEnv(path); err != nil {
				t.Fatalf("LoadEnv() error = %v", err)
			}

			for k, want := range tt.wantEnv {
				if got := os.Getenv(k); got != want {
					t.Errorf("%s = %q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestLoadEnv_MissingFile(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadEnvOptional(t *testing.T) {
	tmpDir := t.TempDir()

	if err := LoadEnvOptional(filepath.Join(tmpDir, "missing.env")); err != nil {
		t.Errorf("missing optional file should not fail: %v", err)
	}

	path := filepath.Join(tmpDir, ".env")
	if err := os.WriteFile(path, []byte("DONGGLE_OPTIONAL=yes\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DONGGLE_OPTIONAL", "")
	os.Unsetenv("DONGGLE_OPTIONAL")

	if err := LoadEnvOptional(path); err != nil {
		t.Fatalf("LoadEnvOptional() error = %v", err)
	}
	if got := os.Getenv("DONGGLE_OPTIONAL"); got != "yes" {
		t.Errorf("DONGGLE_OPTIONAL = %q, want %q", got, "yes")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("DONGGLE_SET", "value")
	t.Setenv("DONGGLE_EMPTY", "")

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"${DONGGLE_SET}", "value"},
		{"${DONGGLE_SET:fallback}", "value"},
		{"${DONGGLE_EMPTY:fallback}", "fallback"},
		{"${DONGGLE_UNSET_VAR}", ""},
		{"${DONGGLE_UNSET_VAR:redis:6379}", "redis:6379"},
		{"${BROKEN", "${BROKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := expandEnv(tt.in); got != tt.want {
				t.Errorf("expandEnv(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
