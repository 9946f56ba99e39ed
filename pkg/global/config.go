package global

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix = "BOOKSTORE_"

	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

type Config struct {
	App struct {
		Name            string        `koanf:"name"`
		Env             string        `koanf:"env"`
		HTTPAddr        string        `koanf:"http_addr"`
		LogLevel        string        `koanf:"log_level"`
		LogFile         string        `koanf:"log_file"`
		StoreDriver     string        `koanf:"store_driver"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout  time.Duration `koanf:"read_timeout"`
		WriteTimeout time.Duration `koanf:"write_timeout"`
		IdleTimeout  time.Duration `koanf:"idle_timeout"`
	} `koanf:"http"`

	Mongo struct {
		URI      string `koanf:"uri"`
		Database string `koanf:"database"`
	} `koanf:"mongo"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Security struct {
		JWTSecret        string        `koanf:"jwt_secret"`
		JWTRefreshSecret string        `koanf:"jwt_refresh_secret"`
		Issuer           string        `koanf:"issuer"`
		AccessTTL        time.Duration `koanf:"access_ttl"`
		RefreshTTL       time.Duration `koanf:"refresh_ttl"`
		BcryptCost       int           `koanf:"bcrypt_cost"`
	} `koanf:"security"`

	Admin struct {
		Email     string `koanf:"email"`
		Password  string `koanf:"password"`
		FirstName string `koanf:"first_name"`
		LastName  string `koanf:"last_name"`
	} `koanf:"admin"`

	Cart struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"cart"`

	Cache struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"cache"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Kafka struct {
		Brokers []string `koanf:"brokers"`
		Topic   string   `koanf:"topic"`
	} `koanf:"kafka"`

	AI struct {
		Endpoint   string `koanf:"endpoint"`
		APIKey     string `koanf:"api_key"`
		Deployment string `koanf:"deployment"`
	} `koanf:"ai"`

	CORS struct {
		AllowOrigins []string `koanf:"allow_origins"`
	} `koanf:"cors"`

	RateLimit struct {
		LoginPerMinute int `koanf:"login_per_minute"`
		Burst          int `koanf:"burst"`
	} `koanf:"rate_limit"`

	Reports struct {
		TopBooks int `koanf:"top_books"`
	} `koanf:"reports"`
}

func defaults() map[string]any {
	return map[string]any{
		"app.name":                    "bookstore-api",
		"app.env":                     "development",
		"app.http_addr":               ":8000",
		"app.log_level":               "info",
		"app.log_file":                "./logs/app.log",
		"app.store_driver":            DriverMongo,
		"app.shutdown_timeout":        "15s",
		"http.read_timeout":           "15s",
		"http.write_timeout":          "30s",
		"http.idle_timeout":           "60s",
		"mongo.database":              "bookstore",
		"redis.addr":                  "localhost:6379",
		"security.issuer":             "bookstore-api",
		"security.access_ttl":         "6h",
		"security.refresh_ttl":        "168h",
		"security.bcrypt_cost":        10,
		"cart.ttl":                    "720h",
		"cache.ttl":                   "10m",
		"idempotency.ttl":             "24h",
		"kafka.topic":                 "bookstore.orders",
		"cors.allow_origins":          []string{"http://localhost:3000", "http://localhost:5173"},
		"rate_limit.login_per_minute": 10,
		"rate_limit.burst":            5,
		"reports.top_books":           5,
	}
}

// LoadConfig layers defaults, an optional YAML file and BOOKSTORE_*
// environment variables, e.g. BOOKSTORE_MONGO__URI or
// BOOKSTORE_KAFKA__BROKERS="a:9092 b:9092".
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	// a missing file is fine for local runs; a broken one is not
	if path != "" && FileExists(path) {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.TrimPrefix(key, EnvPrefix)
		key = strings.ToLower(strings.ReplaceAll(key, "__", "."))
		if isListKey(key) {
			return key, strings.Fields(value)
		}
		return key, value
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func isListKey(key string) bool {
	return key == "kafka.brokers" || key == "cors.allow_origins"
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	switch c.App.StoreDriver {
	case DriverMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("mongo.uri required when app.store_driver is %q", DriverMongo)
		}
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr required when app.store_driver is %q", DriverMongo)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("app.store_driver must be %q or %q", DriverMongo, DriverMemory)
	}
	if c.Security.JWTSecret == "" || c.Security.JWTRefreshSecret == "" {
		return fmt.Errorf("security.jwt_secret and security.jwt_refresh_secret required")
	}
	if c.Security.JWTSecret == c.Security.JWTRefreshSecret {
		return fmt.Errorf("security.jwt_secret and security.jwt_refresh_secret must differ")
	}
	if c.Security.AccessTTL <= 0 || c.Security.RefreshTTL <= 0 {
		return fmt.Errorf("security.access_ttl and security.refresh_ttl must be positive")
	}
	if (c.Admin.Email == "") != (c.Admin.Password == "") {
		return fmt.Errorf("admin.email and admin.password must be set together")
	}
	return nil
}

// IsProduction reports whether gin should run in release mode
func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

// ConfigPath resolves the YAML location from BOOKSTORE_CONFIG
func ConfigPath() string {
	return GetEnvOrDefault(EnvPrefix+"CONFIG", "configs/config.yaml")
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
