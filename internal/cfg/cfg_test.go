package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.DataDir != "." {
					t.Errorf("expected default DataDir '.', got %s", settings.DataDir)
				}
				if settings.ScalerPath != filepath.Join(".", "Scaler", "scaler.json") {
					t.Errorf("unexpected ScalerPath %s", settings.ScalerPath)
				}
				if settings.ModelsDir != "Saved_models" {
					t.Errorf("unexpected ModelsDir %s", settings.ModelsDir)
				}
				if settings.ModelExt != ".json" {
					t.Errorf("expected default ModelExt .json, got %s", settings.ModelExt)
				}
				if settings.DuplicatePolicy != DuplicateFirst {
					t.Errorf("expected default duplicate policy first, got %s", settings.DuplicatePolicy)
				}
				if settings.Port != 8501 {
					t.Errorf("expected default Port 8501, got %d", settings.Port)
				}
				if settings.CacheSize != 256 {
					t.Errorf("expected default CacheSize 256, got %d", settings.CacheSize)
				}
				if settings.RequestTimeout != 5*time.Second {
					t.Errorf("expected default RequestTimeout 5s, got %v", settings.RequestTimeout)
				}
				if settings.HistoryPath != "" {
					t.Errorf("expected history to be disabled by default, got %s", settings.HistoryPath)
				}
			},
		},
		{
			name: "custom data dir and overrides",
			envVars: map[string]string{
				"DATA_DIR":                "/srv/crops",
				"MODELS_DIR":              "/opt/models",
				"MODEL_EXT":               "model",
				"DUPLICATE_REGION_POLICY": "REJECT",
				"PORT":                    "9090",
				"CACHE_SIZE":              "0",
				"REQUEST_TIMEOUT":         "2s",
				"HISTORY_PATH":            "/var/lib/croprec",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.LabelsPath != filepath.Join("/srv/crops", "Label_numbers.csv") {
					t.Errorf("unexpected LabelsPath %s", settings.LabelsPath)
				}
				if settings.RegionsPath != filepath.Join("/srv/crops", "District_data", "state_capital_crop_data.csv") {
					t.Errorf("unexpected RegionsPath %s", settings.RegionsPath)
				}
				if settings.ModelsDir != "/opt/models" {
					t.Errorf("expected explicit ModelsDir, got %s", settings.ModelsDir)
				}
				if settings.ModelExt != ".model" {
					t.Errorf("expected ModelExt .model, got %s", settings.ModelExt)
				}
				if settings.DuplicatePolicy != DuplicateReject {
					t.Errorf("expected duplicate policy reject, got %s", settings.DuplicatePolicy)
				}
				if settings.Port != 9090 {
					t.Errorf("expected Port 9090, got %d", settings.Port)
				}
				if settings.CacheSize != 0 {
					t.Errorf("expected CacheSize 0, got %d", settings.CacheSize)
				}
				if settings.RequestTimeout != 2*time.Second {
					t.Errorf("expected RequestTimeout 2s, got %v", settings.RequestTimeout)
				}
			},
		},
		{
			name:    "unknown duplicate policy",
			envVars: map[string]string{"DUPLICATE_REGION_POLICY": "merge"},
			wantErr: true,
		},
		{
			name:    "privileged port",
			envVars: map[string]string{"PORT": "80"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)

			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			settings, err := loadFromEnv()

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	tests := []struct {
		name         string
		yamlContent  string
		envOverrides map[string]string
		wantErr      bool
		validate     func(t *testing.T, settings Settings, dir string)
	}{
		{
			name: "valid YAML config",
			yamlContent: `
data:
  dir: "assets"
  modelExt: ".json"
regions:
  duplicatePolicy: "reject"
server:
  port: 9000
  requestTimeout: "3s"
  cacheSize: 0
storage:
  historyPath: "/tmp/history"
log:
  level: "debug"
`,
			validate: func(t *testing.T, settings Settings, dir string) {
				if settings.DataDir != filepath.Join(dir, "assets") {
					t.Errorf("expected DataDir relative to config file, got %s", settings.DataDir)
				}
				if settings.ModelsDir != filepath.Join(dir, "assets", "Saved_models") {
					t.Errorf("unexpected ModelsDir %s", settings.ModelsDir)
				}
				if settings.DuplicatePolicy != DuplicateReject {
					t.Errorf("expected reject policy, got %s", settings.DuplicatePolicy)
				}
				if settings.Port != 9000 {
					t.Errorf("expected Port 9000, got %d", settings.Port)
				}
				if settings.CacheSize != 0 {
					t.Errorf("expected explicit CacheSize 0, got %d", settings.CacheSize)
				}
				if settings.RequestTimeout != 3*time.Second {
					t.Errorf("expected RequestTimeout 3s, got %v", settings.RequestTimeout)
				}
				if settings.HistoryPath != "/tmp/history" {
					t.Errorf("expected HistoryPath /tmp/history, got %s", settings.HistoryPath)
				}
				if settings.LogLevel != "debug" {
					t.Errorf("expected LogLevel debug, got %s", settings.LogLevel)
				}
			},
		},
		{
			name: "YAML with env overrides",
			yamlContent: `
data:
  dir: "/srv/crops"
server:
  port: 9000
`,
			envOverrides: map[string]string{
				"PORT":        "9100",
				"LABELS_PATH": "/etc/labels.csv",
			},
			validate: func(t *testing.T, settings Settings, dir string) {
				if settings.Port != 9100 {
					t.Errorf("expected env override Port 9100, got %d", settings.Port)
				}
				if settings.LabelsPath != "/etc/labels.csv" {
					t.Errorf("expected env override LabelsPath, got %s", settings.LabelsPath)
				}
				if settings.CacheSize != 256 {
					t.Errorf("expected default CacheSize when unset, got %d", settings.CacheSize)
				}
			},
		},
		{
			name: "invalid values",
			yamlContent: `
server:
  cacheSize: -1
`,
			wantErr: true,
		},
		{
			name:        "invalid YAML",
			yamlContent: "data: [unclosed",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)

			dir := t.TempDir()
			configPath := filepath.Join(dir, "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.yamlContent), 0o600); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			for key, value := range tt.envOverrides {
				t.Setenv(key, value)
			}

			settings, err := loadFromYAML(configPath)

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings, dir)
			}
		})
	}
}

func TestLoadFromYAML_MissingFile(t *testing.T) {
	_, err := loadFromYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearTestEnv(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("PORT=9200\nDATA_DIR=/from/dotenv\n"), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}

	// Already-set variables win over the dotenv file.
	t.Setenv("DATA_DIR", "/from/env")
	t.Setenv("PORT", "")
	os.Unsetenv("PORT")

	if err := loadDotEnv(filepath.Join(dir, "absent.env"), envPath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	settings, err := loadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Port != 9200 {
		t.Errorf("expected Port from dotenv 9200, got %d", settings.Port)
	}
	if settings.DataDir != "/from/env" {
		t.Errorf("expected DataDir from environment, got %s", settings.DataDir)
	}
}

func TestValidateSettings(t *testing.T) {
	valid := func() *Settings {
		return &Settings{
			DataDir:         ".",
			ModelExt:        ".json",
			DuplicatePolicy: DuplicateFirst,
			Port:            8501,
			CacheSize:       10,
			RequestTimeout:  time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr bool
	}{
		{"valid", func(s *Settings) {}, false},
		{"empty data dir", func(s *Settings) { s.DataDir = "" }, true},
		{"empty extension", func(s *Settings) { s.ModelExt = "." }, true},
		{"bad policy", func(s *Settings) { s.DuplicatePolicy = "last" }, true},
		{"port too high", func(s *Settings) { s.Port = 70000 }, true},
		{"negative cache", func(s *Settings) { s.CacheSize = -5 }, true},
		{"timeout too short", func(s *Settings) { s.RequestTimeout = time.Millisecond }, true},
		{"timeout too long", func(s *Settings) { s.RequestTimeout = time.Hour }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := validateSettings(s)
			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func clearTestEnv(t *testing.T) {
	envVars := []string{
		"CONFIG_FILE", "DATA_DIR", "SCALER_PATH", "MODELS_DIR", "MODEL_EXT",
		"LABELS_PATH", "REGIONS_PATH", "IMAGES_DIR", "DUPLICATE_REGION_POLICY",
		"HISTORY_PATH", "CACHE_SIZE", "PORT", "LOG_LEVEL", "LOG_FILE", "REQUEST_TIMEOUT",
	}

	for _, env := range envVars {
		if val := os.Getenv(env); val != "" {
			t.Setenv(env, "")
		}
	}
}
