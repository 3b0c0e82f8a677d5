package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sir_venger/upload_lite/internal/objectstore"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	MetaDSN    string `yaml:"meta_dsn" json:"meta_dsn"`

	// ChunkBackend выбирает хранилище частей: disk | bolt.
	ChunkBackend string `yaml:"chunk_backend" json:"chunk_backend"`
	ChunksDir    string `yaml:"chunks_dir" json:"chunks_dir"`
	BoltPath     string `yaml:"bolt_path" json:"bolt_path"`

	// ObjectBackend выбирает хранилище собранных объектов: disk | s3.
	ObjectBackend string               `yaml:"object_backend" json:"object_backend"`
	ObjectsDir    string               `yaml:"objects_dir" json:"objects_dir"`
	S3            objectstore.S3Config `yaml:"s3" json:"s3"`

	DigestAlgo string `yaml:"digest_algo" json:"digest_algo"`

	MaxChunkSize int64 `yaml:"max_chunk_size" json:"max_chunk_size"`

	SessionTTL    time.Duration `yaml:"session_ttl" json:"session_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
}

// Load читает YAML-конфигурацию, применяет ENV-переопределения и возвращает актуальную структуру.
func Load() (*Config, error) {
	c := defaults()

	path := getenv("CONFIG_PATH", "./config.yaml")
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
		// Конфиг необязателен: дефолты плюс ENV достаточно для локального запуска.
	default:
		return nil, err
	}

	// ENV override
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("META_DSN"); v != "" {
		c.MetaDSN = v
	}
	if v := os.Getenv("CHUNK_BACKEND"); v != "" {
		c.ChunkBackend = v
	}
	if v := os.Getenv("CHUNKS_DIR"); v != "" {
		c.ChunksDir = v
	}
	if v := os.Getenv("BOLT_PATH"); v != "" {
		c.BoltPath = v
	}
	if v := os.Getenv("OBJECT_BACKEND"); v != "" {
		c.ObjectBackend = v
	}
	if v := os.Getenv("OBJECTS_DIR"); v != "" {
		c.ObjectsDir = v
	}
	if v := os.Getenv("DIGEST_ALGO"); v != "" {
		c.DigestAlgo = v
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.SessionTTL = d
		}
	}
	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.SweepInterval = d
		}
	}

	return c, nil
}

func defaults() *Config {
	return &Config{
		ListenAddr:    ":8080",
		ChunkBackend:  "disk",
		ChunksDir:     "./data/chunks",
		BoltPath:      "./data/chunks.bolt",
		ObjectBackend: "disk",
		ObjectsDir:    "./data/objects",
		SessionTTL:    24 * time.Hour,
		SweepInterval: 10 * time.Minute,
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}

	return def
}
