package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Config holds all configuration values. Environment variables take
// precedence over the optional YAML file.
type Config struct {
	AppPort   string
	Env       string
	LogLevel  string
	LogFormat string

	// Blob Store
	BlobBackend string // bolt | minio | memory
	BoltPath    string
	BlobCacheMB int // read cache in front of minio, 0 disables

	// Scene Document Store
	DocBackend string // bolt | postgres | redis | memory
	DocPath    string
	RedisAddr  string
	RedisDB    int

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioSSL       bool

	// Submission server
	DataDir           string
	SubmissionsDir    string
	HostedDir         string
	SubmissionLog     string
	SubmissionBackend string // file | postgres
	ArchiveBackend    string // local | minio
	MaxUploadSizeMB   int

	// Asset handling
	FetchTimeoutSec   int
	FetchProxyURL     string
	TransientCapacity int
	DefaultSceneID    string
}

var (
	ErrUnknownBlobBackend       = errors.New("BLOB_BACKEND must be one of bolt, minio, memory")
	ErrUnknownDocBackend        = errors.New("DOC_BACKEND must be one of bolt, postgres, redis, memory")
	ErrUnknownSubmissionBackend = errors.New("SUBMISSION_BACKEND must be one of file, postgres")
	ErrUnknownArchiveBackend    = errors.New("ARCHIVE_BACKEND must be one of local, minio")
	ErrDatabaseIncomplete       = errors.New("database configuration is incomplete")
	ErrMinioIncomplete          = errors.New("minio configuration is incomplete")
	ErrRedisIncomplete          = errors.New("REDIS_ADDR is required for the redis document backend")
)

const (
	DefaultPort              = "8080"
	DefaultEnv               = "development"
	DefaultDataDir           = "data"
	DefaultBoltPath          = "data/assets.db"
	DefaultMaxUploadSizeMB   = 512
	DefaultFetchTimeoutSec   = 30
	DefaultTransientCapacity = 256
	DefaultBlobCacheMB       = 64
	DefaultSceneID           = "room1"
)

// Load reads configuration from an optional YAML file and the environment.
// It returns the config and every validation error found.
func Load(path string) (*Config, []error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, []error{errors.Wrapf(err, "load config file %s", path)}
		}
	}

	var errs []error
	intVal := func(env, key string, def int) int {
		v, err := getEnvIntOrKoanf(env, k, key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	boolVal := func(env, key string) bool {
		v, err := getEnvBoolOrKoanf(env, k, key)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	dataDir := getEnvOrDefault("DATA_DIR", k.String("data_dir"), DefaultDataDir)
	cfg := &Config{
		AppPort:   getEnvOrDefault("TOUR_PORT", k.String("port"), DefaultPort),
		Env:       getEnvOrDefault("TOUR_ENV", k.String("env"), DefaultEnv),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", k.String("log.level"), "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", k.String("log.format"), "json"),

		BlobBackend: strings.ToLower(getEnvOrDefault("BLOB_BACKEND", k.String("blob.backend"), "bolt")),
		BoltPath:    getEnvOrDefault("BOLT_PATH", k.String("blob.bolt_path"), DefaultBoltPath),
		BlobCacheMB: intVal("BLOB_CACHE_MB", "blob.cache_mb", DefaultBlobCacheMB),

		DocBackend: strings.ToLower(getEnvOrDefault("DOC_BACKEND", k.String("doc.backend"), "bolt")),
		DocPath:    getEnvOrDefault("DOC_PATH", k.String("doc.path"), dataDir+"/documents.db"),
		RedisAddr:  getEnvOrKoanf("REDIS_ADDR", k, "redis.addr"),
		RedisDB:    intVal("REDIS_DB", "redis.db", 0),

		DBHost:     getEnvOrKoanf("DB_HOST", k, "db.host"),
		DBPort:     getEnvOrDefault("DB_PORT", k.String("db.port"), "5432"),
		DBUser:     getEnvOrKoanf("DB_USER", k, "db.user"),
		DBPassword: getEnvOrKoanf("DB_PASSWORD", k, "db.password"),
		DBName:     getEnvOrKoanf("DB_NAME", k, "db.name"),

		MinioEndpoint:  getEnvOrKoanf("MINIO_ENDPOINT", k, "minio.endpoint"),
		MinioAccessKey: getEnvOrKoanf("MINIO_ACCESS_KEY", k, "minio.access_key"),
		MinioSecretKey: getEnvOrKoanf("MINIO_SECRET_KEY", k, "minio.secret_key"),
		MinioBucket:    getEnvOrKoanf("MINIO_BUCKET", k, "minio.bucket"),
		MinioSSL:       boolVal("MINIO_SSL", "minio.ssl"),

		DataDir:           dataDir,
		SubmissionsDir:    getEnvOrDefault("SUBMISSIONS_DIR", k.String("submissions.dir"), dataDir+"/submissions"),
		HostedDir:         getEnvOrDefault("HOSTED_DIR", k.String("submissions.hosted_dir"), dataDir+"/hosted"),
		SubmissionLog:     getEnvOrDefault("SUBMISSION_LOG", k.String("submissions.log"), dataDir+"/submissions.log"),
		SubmissionBackend: strings.ToLower(getEnvOrDefault("SUBMISSION_BACKEND", k.String("submissions.backend"), "file")),
		ArchiveBackend:    strings.ToLower(getEnvOrDefault("ARCHIVE_BACKEND", k.String("submissions.archive_backend"), "local")),
		MaxUploadSizeMB:   intVal("MAX_UPLOAD_SIZE_MB", "submissions.max_upload_size_mb", DefaultMaxUploadSizeMB),

		FetchTimeoutSec:   intVal("FETCH_TIMEOUT_SEC", "assets.fetch_timeout_sec", DefaultFetchTimeoutSec),
		FetchProxyURL:     getEnvOrKoanf("FETCH_PROXY_URL", k, "assets.fetch_proxy_url"),
		TransientCapacity: intVal("TRANSIENT_CAPACITY", "assets.transient_capacity", DefaultTransientCapacity),
		DefaultSceneID:    getEnvOrDefault("DEFAULT_SCENE_ID", k.String("assets.default_scene"), DefaultSceneID),
	}

	return cfg, append(errs, cfg.Validate()...)
}

// Validate checks backend selections and the settings each backend needs.
func (c *Config) Validate() []error {
	var errs []error
	needDB, needMinio := false, false

	switch c.BlobBackend {
	case "bolt", "memory":
	case "minio":
		needMinio = true
	default:
		errs = append(errs, ErrUnknownBlobBackend)
	}
	switch c.DocBackend {
	case "bolt", "memory":
	case "postgres":
		needDB = true
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, ErrRedisIncomplete)
		}
	default:
		errs = append(errs, ErrUnknownDocBackend)
	}
	switch c.SubmissionBackend {
	case "file":
	case "postgres":
		needDB = true
	default:
		errs = append(errs, ErrUnknownSubmissionBackend)
	}
	switch c.ArchiveBackend {
	case "local":
	case "minio":
		needMinio = true
	default:
		errs = append(errs, ErrUnknownArchiveBackend)
	}

	if needDB && (c.DBHost == "" || c.DBUser == "" || c.DBName == "") {
		errs = append(errs, ErrDatabaseIncomplete)
	}
	if needMinio && (c.MinioEndpoint == "" || c.MinioAccessKey == "" || c.MinioSecretKey == "" || c.MinioBucket == "") {
		errs = append(errs, ErrMinioIncomplete)
	}
	return errs
}

// NeedsDatabase reports whether any configured backend uses postgres.
func (c *Config) NeedsDatabase() bool {
	return c.DocBackend == "postgres" || c.SubmissionBackend == "postgres"
}

// NeedsMinio reports whether any configured backend uses MinIO.
func (c *Config) NeedsMinio() bool {
	return c.BlobBackend == "minio" || c.ArchiveBackend == "minio"
}

// ConnectDatabase initializes a GORM database connection to PostgreSQL.
func ConnectDatabase(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	return db, nil
}

func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

func getEnvOrDefault(envKey, koanfVal, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

func getEnvIntOrKoanf(envKey string, k *koanf.Koanf, koanfKey string, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return defaultVal, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if k.Exists(koanfKey) {
		return k.Int(koanfKey), nil
	}
	return defaultVal, nil
}

func getEnvBoolOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) (bool, error) {
	if val := os.Getenv(envKey); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return false, fmt.Errorf("invalid %s value: %w", envKey, err)
		}
		return b, nil
	}
	return k.Bool(koanfKey), nil
}
