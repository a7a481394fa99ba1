package common

// Environment variable keys
const (
	EnvConfigFile      = "CONFIG_FILE"
	EnvDataDir         = "DATA_DIR"
	EnvScalerPath      = "SCALER_PATH"
	EnvModelsDir       = "MODELS_DIR"
	EnvModelExt        = "MODEL_EXT"
	EnvLabelsPath      = "LABELS_PATH"
	EnvRegionsPath     = "REGIONS_PATH"
	EnvImagesDir       = "IMAGES_DIR"
	EnvDuplicatePolicy = "DUPLICATE_REGION_POLICY"
	EnvHistoryPath     = "HISTORY_PATH"
	EnvCacheSize       = "CACHE_SIZE"
	EnvPort            = "PORT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogFile         = "LOG_FILE"
	EnvRequestTimeout  = "REQUEST_TIMEOUT"
	EnvServerURL       = "CROPREC_SERVER"
)

// Layout of the data directory, relative to DataDir
const (
	ScalerFile  = "Scaler/scaler.json"
	ModelsDir   = "Saved_models"
	LabelsFile  = "Label_numbers.csv"
	RegionsFile = "District_data/state_capital_crop_data.csv"
	ImagesDir   = "Crop_images"
)

// Configuration defaults
const (
	DefaultDataDir         = "."
	DefaultModelExt        = ".json"
	DefaultDuplicatePolicy = "first"
	DefaultPort            = 8501
	DefaultCacheSize       = 256
	DefaultLogLevel        = "info"
	DefaultRequestTimeout  = "5s"
	DefaultServerURL       = "http://localhost:8501"
	DefaultHistoryLimit    = 50
	MaxHistoryLimit        = 1000
)

// Display fallbacks
const (
	UnknownCrop  = "Unknown Crop" // headline when the consensus label is unmapped
	UnknownLabel = "Unknown"      // per-model breakdown when a vote is unmapped
)

// User-facing messages
const (
	MsgRegionNotFound = "No data found for the selected state and district."
	MsgImageMissing   = "Image not available for this crop."
)

// Validation constants
const (
	MinPort      = 1024
	MaxPort      = 65535
	MaxCacheSize = 100000
)
