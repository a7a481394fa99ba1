package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"crop-recommender/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duplicate region policies
const (
	DuplicateFirst  = "first"
	DuplicateReject = "reject"
)

type Settings struct {
	DataDir         string
	ScalerPath      string
	ModelsDir       string
	ModelExt        string
	LabelsPath      string
	RegionsPath     string
	ImagesDir       string
	DuplicatePolicy string
	HistoryPath     string
	CacheSize       int
	Port            int
	RequestTimeout  time.Duration
	LogLevel        string
	LogFile         string
}

type ConfigFile struct {
	Data struct {
		Dir         string `yaml:"dir"`
		ScalerPath  string `yaml:"scalerPath"`
		ModelsDir   string `yaml:"modelsDir"`
		ModelExt    string `yaml:"modelExt"`
		LabelsPath  string `yaml:"labelsPath"`
		RegionsPath string `yaml:"regionsPath"`
		ImagesDir   string `yaml:"imagesDir"`
	} `yaml:"data"`

	Regions struct {
		DuplicatePolicy string `yaml:"duplicatePolicy"`
	} `yaml:"regions"`

	Server struct {
		Port           int    `yaml:"port"`
		RequestTimeout string `yaml:"requestTimeout"`
		CacheSize      *int   `yaml:"cacheSize"`
	} `yaml:"server"`

	Storage struct {
		HistoryPath string `yaml:"historyPath"`
	} `yaml:"storage"`

	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

func Load() (Settings, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Settings{}, err
	}

	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

// loadDotEnv populates unset environment variables from dotenv files. Missing files are ignored.
func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to read env file %s: %w", p, err)
		}
	}
	return nil
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	timeout, err := time.ParseDuration(getEnvOrDefault(common.EnvRequestTimeout, config.Server.RequestTimeout))
	if err != nil {
		timeout = 5 * time.Second
	}

	cacheSize := common.DefaultCacheSize
	if config.Server.CacheSize != nil {
		cacheSize = *config.Server.CacheSize
	}

	dataDir := getEnvOrDefault(common.EnvDataDir, config.Data.Dir)
	if dataDir == "" {
		dataDir = common.DefaultDataDir
	}
	// Relative data paths in a config file are resolved against the file's directory.
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(filepath.Dir(path), dataDir)
	}

	settings := Settings{
		DataDir:         dataDir,
		ScalerPath:      getEnvOrDefault(common.EnvScalerPath, config.Data.ScalerPath),
		ModelsDir:       getEnvOrDefault(common.EnvModelsDir, config.Data.ModelsDir),
		ModelExt:        getEnvOrDefault(common.EnvModelExt, orDefault(config.Data.ModelExt, common.DefaultModelExt)),
		LabelsPath:      getEnvOrDefault(common.EnvLabelsPath, config.Data.LabelsPath),
		RegionsPath:     getEnvOrDefault(common.EnvRegionsPath, config.Data.RegionsPath),
		ImagesDir:       getEnvOrDefault(common.EnvImagesDir, config.Data.ImagesDir),
		DuplicatePolicy: getEnvOrDefault(common.EnvDuplicatePolicy, orDefault(config.Regions.DuplicatePolicy, common.DefaultDuplicatePolicy)),
		HistoryPath:     getEnvOrDefault(common.EnvHistoryPath, config.Storage.HistoryPath),
		CacheSize:       getIntFromEnvOrConfig(common.EnvCacheSize, cacheSize),
		Port:            getIntFromEnvOrConfig(common.EnvPort, orDefaultInt(config.Server.Port, common.DefaultPort)),
		RequestTimeout:  timeout,
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, orDefault(config.Log.Level, common.DefaultLogLevel)),
		LogFile:         getEnvOrDefault(common.EnvLogFile, config.Log.File),
	}
	settings.resolvePaths()

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		DataDir:         getEnvOrDefault(common.EnvDataDir, common.DefaultDataDir),
		ScalerPath:      os.Getenv(common.EnvScalerPath),
		ModelsDir:       os.Getenv(common.EnvModelsDir),
		ModelExt:        getEnvOrDefault(common.EnvModelExt, common.DefaultModelExt),
		LabelsPath:      os.Getenv(common.EnvLabelsPath),
		RegionsPath:     os.Getenv(common.EnvRegionsPath),
		ImagesDir:       os.Getenv(common.EnvImagesDir),
		DuplicatePolicy: getEnvOrDefault(common.EnvDuplicatePolicy, common.DefaultDuplicatePolicy),
		HistoryPath:     os.Getenv(common.EnvHistoryPath), // optional
		CacheSize:       getIntOrDefault(common.EnvCacheSize, common.DefaultCacheSize),
		Port:            getIntOrDefault(common.EnvPort, common.DefaultPort),
		RequestTimeout:  getDurationOrDefault(common.EnvRequestTimeout, 5*time.Second),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFile:         os.Getenv(common.EnvLogFile),
	}
	settings.resolvePaths()

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// resolvePaths fills every unset resource path from the data directory layout.
func (s *Settings) resolvePaths() {
	if s.ScalerPath == "" {
		s.ScalerPath = filepath.Join(s.DataDir, common.ScalerFile)
	}
	if s.ModelsDir == "" {
		s.ModelsDir = filepath.Join(s.DataDir, common.ModelsDir)
	}
	if s.LabelsPath == "" {
		s.LabelsPath = filepath.Join(s.DataDir, common.LabelsFile)
	}
	if s.RegionsPath == "" {
		s.RegionsPath = filepath.Join(s.DataDir, common.RegionsFile)
	}
	if s.ImagesDir == "" {
		s.ImagesDir = filepath.Join(s.DataDir, common.ImagesDir)
	}
	if s.ModelExt != "" && !strings.HasPrefix(s.ModelExt, ".") {
		s.ModelExt = "." + s.ModelExt
	}
	s.DuplicatePolicy = strings.ToLower(strings.TrimSpace(s.DuplicatePolicy))
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	return configValue
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// validateSettings rejects values that would make startup meaningless. File existence is checked by the loaders.
func validateSettings(settings *Settings) error {
	if settings.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}
	if settings.ModelExt == "" || settings.ModelExt == "." {
		return fmt.Errorf("model file extension cannot be empty")
	}

	switch settings.DuplicatePolicy {
	case DuplicateFirst, DuplicateReject:
	default:
		return fmt.Errorf("duplicate region policy must be %q or %q, got %q", DuplicateFirst, DuplicateReject, settings.DuplicatePolicy)
	}

	if settings.Port < common.MinPort || settings.Port > common.MaxPort {
		return fmt.Errorf("port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.Port)
	}
	if settings.CacheSize < 0 || settings.CacheSize > common.MaxCacheSize {
		return fmt.Errorf("cache size must be between 0 and %d, got %d", common.MaxCacheSize, settings.CacheSize)
	}
	if settings.RequestTimeout < 100*time.Millisecond || settings.RequestTimeout > time.Minute {
		return fmt.Errorf("request timeout must be between 100ms and 1m, got %v", settings.RequestTimeout)
	}

	return nil
}
