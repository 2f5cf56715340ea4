package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the prep-ilamb job configuration.
type Config struct {
	InputDir      string
	OutputDir     string
	FileType      string
	Suffix        string
	VariablesFile string

	// Upload of written files. Disabled when MinIOEndpoint is empty.
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	// Loading of regridded cells. Disabled when ClickHouseHost is empty.
	ClickHouseHost     string
	ClickHousePort     string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseDatabase string

	// Processed-file log: Postgres when CatalogDSN is set, otherwise a
	// plain-text manifest in CatalogLogDir (which defaults to OutputDir).
	CatalogDSN    string
	CatalogLogDir string

	Regrid Regrid
}

// Regrid holds the target grid and mask knobs.
type Regrid struct {
	LonStep     float64
	LatStep     float64
	MaxDistance float64
	BatchSize   int
	Workers     int
}

// Defaults match the 0.1 degree ILAMB product.
const (
	DefaultFileType    = "*"
	DefaultSuffix      = "-ILAMB"
	DefaultStep        = 0.1
	DefaultMaxDistance = 0.1
	DefaultBatchSize   = 10000
	DefaultWorkers     = 1
)

type ErrMissingRequiredEnvVar struct {
	Name string
}

func (e *ErrMissingRequiredEnvVar) Error() string {
	return fmt.Sprintf("required environment variable %q is not set", e.Name)
}

// Load reads configuration from environment variables.
// Returns an error if required variables are missing or numbers are malformed.
func Load() (*Config, error) {
	config := Config{}
	config.InputDir = os.Getenv("CATCHCN_INPUT_DIR")
	if config.InputDir == "" {
		return nil, &ErrMissingRequiredEnvVar{Name: "CATCHCN_INPUT_DIR"}
	}
	config.OutputDir = os.Getenv("CATCHCN_OUTPUT_DIR")
	if config.OutputDir == "" {
		return nil, &ErrMissingRequiredEnvVar{Name: "CATCHCN_OUTPUT_DIR"}
	}
	config.FileType = getEnv("CATCHCN_FILETYPE", DefaultFileType)
	config.Suffix = getEnv("CATCHCN_SUFFIX", DefaultSuffix)
	config.VariablesFile = os.Getenv("CATCHCN_VARIABLES_FILE")

	config.MinIOEndpoint = os.Getenv("MINIO_ENDPOINT")
	if config.MinIOEndpoint != "" {
		for _, v := range []struct {
			name string
			dst  *string
		}{
			{"MINIO_ACCESS_KEY", &config.MinIOAccessKey},
			{"MINIO_SECRET_KEY", &config.MinIOSecretKey},
			{"MINIO_BUCKET", &config.MinIOBucket},
		} {
			*v.dst = os.Getenv(v.name)
			if *v.dst == "" {
				return nil, &ErrMissingRequiredEnvVar{Name: v.name}
			}
		}
		config.MinIOUseSSL = os.Getenv("MINIO_USE_SSL") == "true"
	}

	config.ClickHouseHost = os.Getenv("CLICKHOUSE_HOST")
	config.ClickHousePort = getEnv("CLICKHOUSE_PORT", "9000")
	config.ClickHouseUser = getEnv("CLICKHOUSE_USER", "default")
	config.ClickHousePassword = os.Getenv("CLICKHOUSE_PASSWORD")
	config.ClickHouseDatabase = getEnv("CLICKHOUSE_DATABASE", "ilamb")

	config.CatalogDSN = os.Getenv("CATALOG_DSN")
	config.CatalogLogDir = getEnv("CATALOG_LOG_DIR", config.OutputDir)

	var err error
	if config.Regrid.LonStep, err = floatEnv("REGRID_LON_STEP", DefaultStep); err != nil {
		return nil, err
	}
	if config.Regrid.LatStep, err = floatEnv("REGRID_LAT_STEP", DefaultStep); err != nil {
		return nil, err
	}
	if config.Regrid.MaxDistance, err = floatEnv("REGRID_MAX_DISTANCE", DefaultMaxDistance); err != nil {
		return nil, err
	}
	if config.Regrid.BatchSize, err = intEnv("REGRID_BATCH_SIZE", DefaultBatchSize); err != nil {
		return nil, err
	}
	if config.Regrid.Workers, err = intEnv("REGRID_WORKERS", DefaultWorkers); err != nil {
		return nil, err
	}

	return &config, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("environment variable %q: %w", key, err)
	}
	return f, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("environment variable %q: %w", key, err)
	}
	return n, nil
}
