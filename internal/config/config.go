package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "./config.yaml"

type Config struct {
	ListenAddr string        `yaml:"listen_addr" json:"listen_addr"`
	MetaDSN    string        `yaml:"meta_dsn" json:"meta_dsn"`
	LogLevel   string        `yaml:"log_level" json:"log_level"`
	ServerURL  string        `yaml:"server_url" json:"server_url"`
	Storage    StorageConfig `yaml:"storage" json:"storage"`
	Upload     UploadConfig  `yaml:"upload" json:"upload"`
	Preview    PreviewConfig `yaml:"preview" json:"preview"`
	GC         GCConfig      `yaml:"gc" json:"gc"`
}

// StorageConfig выбирает бэкенд хранения частей: disk, s3 или memory.
type StorageConfig struct {
	Backend    string `yaml:"backend" json:"backend"`
	DataDir    string `yaml:"data_dir" json:"data_dir"`
	S3Bucket   string `yaml:"s3_bucket" json:"s3_bucket"`
	S3Region   string `yaml:"s3_region" json:"s3_region"`
	S3Endpoint string `yaml:"s3_endpoint" json:"s3_endpoint"`
	S3Prefix   string `yaml:"s3_prefix" json:"s3_prefix"`
}

// UploadConfig содержит настраиваемые параметры протокола загрузки частями.
type UploadConfig struct {
	ChunkSize         ByteSize      `yaml:"chunk_size" json:"chunk_size"`
	MaxFileSize       ByteSize      `yaml:"max_file_size" json:"max_file_size"`
	MaxChunkBytes     ByteSize      `yaml:"max_chunk_bytes" json:"max_chunk_bytes"`
	MaxConcurrency    int           `yaml:"max_concurrency" json:"max_concurrency"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryBaseDelay    time.Duration `yaml:"retry_base_delay" json:"retry_base_delay"`
	ChunkTimeout      time.Duration `yaml:"chunk_timeout" json:"chunk_timeout"`
	FinalizeTimeout   time.Duration `yaml:"finalize_timeout" json:"finalize_timeout"`
	AllowedExtensions []string      `yaml:"allowed_extensions" json:"allowed_extensions"`
	AllowedMediaTypes []string      `yaml:"allowed_media_types" json:"allowed_media_types"`
}

// PreviewConfig ограничивает префикс артефакта, из которого строится превью:
// и по числу строк, и по байтам.
type PreviewConfig struct {
	MaxLines int      `yaml:"max_lines" json:"max_lines"`
	MaxRows  int      `yaml:"max_rows" json:"max_rows"`
	MaxBytes ByteSize `yaml:"max_bytes" json:"max_bytes"`
}

// GCConfig управляет фоновым удалением брошенных сессий. Нулевой TTL отключает GC.
type GCConfig struct {
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
	Interval time.Duration `yaml:"interval" json:"interval"`
}

// Default возвращает конфигурацию со значениями по умолчанию.
func Default() *Config {
	return &Config{
		ListenAddr: ":8080",
		MetaDSN:    "file://./data",
		LogLevel:   "info",
		ServerURL:  "http://localhost:8080",
		Storage: StorageConfig{
			Backend: "disk",
			DataDir: "./data",
		},
		Upload: UploadConfig{
			ChunkSize:         MiB,
			MaxFileSize:       100 * MiB,
			MaxChunkBytes:     MiB,
			MaxConcurrency:    3,
			MaxRetries:        2,
			RetryBaseDelay:    250 * time.Millisecond,
			ChunkTimeout:      30 * time.Second,
			FinalizeTimeout:   5 * time.Minute,
			AllowedExtensions: []string{".csv"},
			AllowedMediaTypes: []string{"text/"},
		},
		Preview: PreviewConfig{
			MaxLines: 200,
			MaxRows:  100,
			MaxBytes: MiB,
		},
		GC: GCConfig{
			Interval: 30 * time.Minute,
		},
	}
}

// Load читает YAML-конфигурацию, применяет ENV-переопределения и возвращает актуальную структуру.
// Если CONFIG_PATH не задан и ./config.yaml отсутствует, используются значения по умолчанию.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	c, err := LoadFile(path)
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		c = Default()
	}

	if err := applyEnv(c); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadFile читает конфигурацию из файла поверх значений по умолчанию.
func LoadFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}

	return c, nil
}

func applyEnv(c *Config) error {
	// ENV override
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("META_DSN"); v != "" {
		c.MetaDSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		c.Storage.S3Bucket = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		c.Storage.S3Region = v
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		c.Storage.S3Endpoint = v
	}
	if v := os.Getenv("ALLOWED_EXTENSIONS"); v != "" {
		c.Upload.AllowedExtensions = splitComma(v)
	}

	sizes := map[string]*ByteSize{
		"CHUNK_SIZE":        &c.Upload.ChunkSize,
		"MAX_FILE_SIZE":     &c.Upload.MaxFileSize,
		"MAX_CHUNK_BYTES":   &c.Upload.MaxChunkBytes,
		"PREVIEW_MAX_BYTES": &c.Preview.MaxBytes,
	}
	for key, dst := range sizes {
		if v := os.Getenv(key); v != "" {
			n, err := ParseByteSize(v)
			if err != nil {
				return err
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"GC_TTL":      &c.GC.TTL,
		"GC_INTERVAL": &c.GC.Interval,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			*dst = d
		}
	}

	return nil
}

func splitComma(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}
