package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "10MB"
	defaultMaxRetries         = 3
	defaultTimezone           = "UTC"
	defaultProofPageSize      = 20
	defaultMaxProofPageSize   = 100
	defaultPingInterval       = 30 * time.Second
	defaultWriteTimeout       = 10 * time.Second
	defaultSweepPageSize      = 200
	defaultNudgePerHour       = 4
	defaultNudgeBurst         = 1
	defaultMaxAssetSize       = 5 << 20
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	// Store selects the document store backend
	Store *StoreConfig `json:"store" yaml:"store"`

	// Identity configuration for bearer token verification
	Identity *IdentityConfig `json:"identity" yaml:"identity"`

	// Firebase configuration for push notifications and ID token verification
	Firebase *FirebaseConfig `json:"firebase" yaml:"firebase"`

	// Blob configuration for proof assets and profile pictures
	Blob *BlobConfig `json:"blob" yaml:"blob"`

	// PubSub configuration for event publishing
	PubSub *PubSubConfig `json:"pubsub" yaml:"pubsub"`

	// Engine tunes the habit aggregate engine
	Engine *EngineConfig `json:"engine" yaml:"engine"`

	// Session tunes live sessions
	Session *SessionConfig `json:"session" yaml:"session"`

	// Nudge rate limits buddy reminders
	Nudge *NudgeConfig `json:"nudge" yaml:"nudge"`

	// Maintenance configures the scheduled sweep run by the worker
	Maintenance *MaintenanceConfig `json:"maintenance" yaml:"maintenance"`

	// QRCode configuration for pairing QR codes
	QRCode *QRCodeConfig `json:"qrcode" yaml:"qrcode"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// StoreConfig defines the document store backend
type StoreConfig struct {
	// Driver is "postgres" or "memory"
	Driver string `json:"driver" yaml:"driver"`

	// AutoMigrate applies embedded schema migrations on start
	AutoMigrate bool `json:"autoMigrate" yaml:"autoMigrate"`

	// ListenDSN is a direct connection string for the LISTEN/NOTIFY change feed
	ListenDSN string `json:"listenDsn" yaml:"listenDsn"`
}

// IdentityConfig defines how bearer tokens are verified
type IdentityConfig struct {
	// Provider is "firebase", "google" or "jwt"
	Provider string `json:"provider" yaml:"provider"`

	// Audience is the OAuth client id Google ID tokens must be issued for (google provider)
	Audience string `json:"audience" yaml:"audience"`

	// Secret signs locally issued HS256 tokens (jwt provider)
	Secret string `json:"secret" yaml:"secret"`

	// Issuer is stamped into and required from locally issued tokens
	Issuer string `json:"issuer" yaml:"issuer"`

	// TokenTTL is the lifetime of locally issued tokens
	TokenTTL time.Duration `json:"tokenTtl" yaml:"tokenTtl"`
}

// FirebaseConfig defines Firebase configuration
type FirebaseConfig struct {
	ProjectID       string `json:"projectId" yaml:"projectId"`
	CredentialsPath string `json:"credentialsPath" yaml:"credentialsPath"`
}

// BlobConfig defines the object storage bucket
type BlobConfig struct {
	// BucketURL is a gocloud URL: gs://, s3://, file:// or mem://
	BucketURL string `json:"bucketUrl" yaml:"bucketUrl"`

	// PublicBaseURL, when set, is joined with the object key to build public URLs
	PublicBaseURL string `json:"publicBaseUrl" yaml:"publicBaseUrl"`

	// SignedURLExpiry is used when no public base URL is configured
	SignedURLExpiry time.Duration `json:"signedUrlExpiry" yaml:"signedUrlExpiry"`

	// MaxAssetSize bounds uploaded proof assets and pictures, in bytes
	MaxAssetSize int `json:"maxAssetSize" yaml:"maxAssetSize"`
}

// PubSubConfig defines Pub/Sub configuration for event publishing
type PubSubConfig struct {
	// Provider type: "local" for local HTTP, "google" for Google Pub/Sub, empty for inline delivery
	Provider string `json:"provider" yaml:"provider"`

	// Google Cloud project ID (for google provider)
	ProjectID string `json:"projectId" yaml:"projectId"`

	// Pub/Sub topic ID (for google provider)
	TopicID string `json:"topicId" yaml:"topicId"`

	// Local HTTP endpoint for development (for local provider)
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`

	// PushAudience is the expected OIDC audience of push requests (worker)
	PushAudience string `json:"pushAudience" yaml:"pushAudience"`
}

// EngineConfig tunes the habit aggregate engine
type EngineConfig struct {
	// MaxRetries bounds the optimistic read-modify-write attempts
	MaxRetries int `json:"maxRetries" yaml:"maxRetries"`

	// DefaultTimezone is the calendar used when a client sends none
	DefaultTimezone string `json:"defaultTimezone" yaml:"defaultTimezone"`

	// SweepPageSize is the number of habits processed per maintenance page
	SweepPageSize int `json:"sweepPageSize" yaml:"sweepPageSize"`
}

// SessionConfig tunes live sessions
type SessionConfig struct {
	ProofPageSize    int           `json:"proofPageSize" yaml:"proofPageSize"`
	MaxProofPageSize int           `json:"maxProofPageSize" yaml:"maxProofPageSize"`
	PingInterval     time.Duration `json:"pingInterval" yaml:"pingInterval"`
	WriteTimeout     time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
}

// NudgeConfig rate limits reminders per sender and recipient
type NudgeConfig struct {
	PerHour int `json:"perHour" yaml:"perHour"`
	Burst   int `json:"burst" yaml:"burst"`
}

// MaintenanceConfig configures the scheduled sweep
type MaintenanceConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Schedule string `json:"schedule" yaml:"schedule"`
	Timezone string `json:"timezone" yaml:"timezone"`
}

// QRCodeConfig defines QR code generation configuration
type QRCodeConfig struct {
	Size                 int    `json:"size" yaml:"size"`
	ErrorCorrectionLevel string `json:"errorCorrectionLevel" yaml:"errorCorrectionLevel"`
	BaseURL              string `json:"baseUrl" yaml:"baseUrl"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: POSTGRES_SSLMODE -> postgres.sslMode (not postgres.sslmode)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	// Build replicas from environment variables (POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, etc.)
	if cfg.Postgres != nil {
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	return cfg, nil
}

// applyDefaults fills optional sections so callers never nil-check them.
func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}

	if cfg.Store == nil {
		cfg.Store = &StoreConfig{}
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "postgres"
	}

	if cfg.Identity == nil {
		cfg.Identity = &IdentityConfig{}
	}
	if cfg.Identity.TokenTTL <= 0 {
		cfg.Identity.TokenTTL = 24 * time.Hour
	}

	if cfg.Blob == nil {
		cfg.Blob = &BlobConfig{}
	}
	if cfg.Blob.SignedURLExpiry <= 0 {
		cfg.Blob.SignedURLExpiry = 24 * time.Hour
	}
	if cfg.Blob.MaxAssetSize <= 0 {
		cfg.Blob.MaxAssetSize = defaultMaxAssetSize
	}

	if cfg.PubSub == nil {
		cfg.PubSub = &PubSubConfig{}
	}

	if cfg.Engine == nil {
		cfg.Engine = &EngineConfig{}
	}
	if cfg.Engine.MaxRetries <= 0 {
		cfg.Engine.MaxRetries = defaultMaxRetries
	}
	if cfg.Engine.DefaultTimezone == "" {
		cfg.Engine.DefaultTimezone = defaultTimezone
	}
	if cfg.Engine.SweepPageSize <= 0 {
		cfg.Engine.SweepPageSize = defaultSweepPageSize
	}

	if cfg.Session == nil {
		cfg.Session = &SessionConfig{}
	}
	if cfg.Session.ProofPageSize <= 0 {
		cfg.Session.ProofPageSize = defaultProofPageSize
	}
	if cfg.Session.MaxProofPageSize <= 0 {
		cfg.Session.MaxProofPageSize = defaultMaxProofPageSize
	}
	if cfg.Session.PingInterval <= 0 {
		cfg.Session.PingInterval = defaultPingInterval
	}
	if cfg.Session.WriteTimeout <= 0 {
		cfg.Session.WriteTimeout = defaultWriteTimeout
	}

	if cfg.Nudge == nil {
		cfg.Nudge = &NudgeConfig{}
	}
	if cfg.Nudge.PerHour <= 0 {
		cfg.Nudge.PerHour = defaultNudgePerHour
	}
	if cfg.Nudge.Burst <= 0 {
		cfg.Nudge.Burst = defaultNudgeBurst
	}

	if cfg.Maintenance == nil {
		cfg.Maintenance = &MaintenanceConfig{}
	}
	if cfg.Maintenance.Timezone == "" {
		cfg.Maintenance.Timezone = cfg.Engine.DefaultTimezone
	}

	if cfg.QRCode == nil {
		cfg.QRCode = &QRCodeConfig{Size: 256, ErrorCorrectionLevel: "M"}
	}
}

// Defaults returns a configuration with every optional section filled, for tests and tools.
func Defaults() *Config {
	cfg := new(Config)
	cfg.applyDefaults()

	return cfg
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
// Example: POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, POSTGRES_REPLICAS_0_USERNAME, POSTGRES_REPLICAS_0_PASSWORD
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			// No more replicas or incomplete configuration.
			break
		}

		replica := postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		}

		replicas = append(replicas, replica)
	}

	return replicas
}
