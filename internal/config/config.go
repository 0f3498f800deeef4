package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Route is one named upstream model route (primary/secondary/tertiary).
type Route struct {
	Label  string `yaml:"label"`
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// ServerConfig is the HTTP listener configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"` // debug/release
}

// StoreConfig is the catalog database connection configuration.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url"`
}

// RedisConfig mirrors the teacher's optional-cache shape, reused here for the
// rate limiter's best-effort cross-instance counters.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ToolsConfig configures the Tools-Client.
type ToolsConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

// PolicyConfig configures pipeline-level gating knobs.
type PolicyConfig struct {
	AllowedOrigins    []string `yaml:"allowed_origins"`
	VerifyLinks       bool     `yaml:"verify_links"`
	CaptureCandidates bool     `yaml:"capture_candidates"`
	AuditSalt         string   `yaml:"audit_salt"`
}

// UpstreamConfig configures the model fan-out client.
type UpstreamConfig struct {
	HTTPReferer string           `yaml:"http_referer"`
	AppTitle    string           `yaml:"app_title"`
	Routes      []Route          `yaml:"-"`
}

// WorkerConfig configures the Queue-Worker loop.
type WorkerConfig struct {
	PollMs         int `yaml:"poll_ms"`
	MaxAttempts    int `yaml:"max_attempts"`
	BackoffBaseSec int `yaml:"backoff_base_sec"`
}

// SchedulerConfig configures the stale-refresh Scheduler.
type SchedulerConfig struct {
	StaleHours int `yaml:"stale_hours"`
	BatchSize  int `yaml:"batch_size"`
}

// Config is the application-wide configuration, assembled from an optional
// YAML file overridden by environment variables, the same layering the
// teacher's internal/config/config.go uses.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Redis     RedisConfig     `yaml:"redis"`
	Tools     ToolsConfig     `yaml:"tools"`
	Policy    PolicyConfig    `yaml:"policy"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Worker    WorkerConfig    `yaml:"worker"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

var AppConfig *Config

// Load reads configPath if present, then applies environment overrides per
// the keys in spec.md §6.
func Load(configPath string) error {
	setDefaults()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, AppConfig); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	applyServerEnv()
	applyStoreEnv()
	applyRedisEnv()
	applyToolsEnv()
	applyPolicyEnv()
	applyUpstreamEnv()
	applyWorkerEnv()
	applySchedulerEnv()

	clamp()
	return nil
}

func setDefaults() {
	AppConfig = &Config{
		Server: ServerConfig{Port: 8080, Mode: "release"},
		Tools:  ToolsConfig{TimeoutMs: 6000},
		Policy: PolicyConfig{VerifyLinks: true, CaptureCandidates: true},
		Worker: WorkerConfig{PollMs: 5000, MaxAttempts: 5, BackoffBaseSec: 60},
	}
}

func applyServerEnv() {
	if v := viper.GetInt("SERVER_PORT"); v > 0 {
		AppConfig.Server.Port = v
	}
	if v := viper.GetString("SERVER_MODE"); v != "" {
		AppConfig.Server.Mode = v
	}
}

func applyStoreEnv() {
	if v := viper.GetString("NEON_DATABASE_URL"); v != "" {
		AppConfig.Store.DatabaseURL = v
	} else if v := viper.GetString("DATABASE_URL"); v != "" {
		AppConfig.Store.DatabaseURL = v
	}
}

func applyRedisEnv() {
	if v := viper.GetString("REDIS_HOST"); v != "" {
		AppConfig.Redis.Host = v
		AppConfig.Redis.Enabled = true
	}
	if v := viper.GetInt("REDIS_PORT"); v > 0 {
		AppConfig.Redis.Port = v
	}
	if v := viper.GetString("REDIS_USERNAME"); v != "" {
		AppConfig.Redis.Username = v
	}
	if v := viper.GetString("REDIS_PASSWORD"); v != "" {
		AppConfig.Redis.Password = v
	}
}

func applyToolsEnv() {
	if v := viper.GetString("TOOLS_BASE_URL"); v != "" {
		AppConfig.Tools.BaseURL = v
	}
	if v := viper.GetString("TOOLS_API_KEY"); v != "" {
		AppConfig.Tools.APIKey = v
	}
	if v := viper.GetInt("TOOLS_TIMEOUT_MS"); v > 0 {
		AppConfig.Tools.TimeoutMs = v
	}
}

func applyPolicyEnv() {
	if v := viper.GetString("JULEHA_ALLOWED_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				origins = append(origins, p)
			}
		}
		AppConfig.Policy.AllowedOrigins = origins
	}
	if v := os.Getenv("JULEHA_VERIFY_LINKS"); v != "" {
		AppConfig.Policy.VerifyLinks = v == "1"
	}
	if v := os.Getenv("JULEHA_CAPTURE_CANDIDATES"); v != "" {
		AppConfig.Policy.CaptureCandidates = v == "1"
	}
	if v := viper.GetString("JULEHA_AUDIT_SALT"); v != "" {
		AppConfig.Policy.AuditSalt = v
	}
}

func applyUpstreamEnv() {
	if v := viper.GetString("OPENROUTER_HTTP_REFERER"); v != "" {
		AppConfig.Upstream.HTTPReferer = v
	}
	if v := viper.GetString("OPENROUTER_APP_TITLE"); v != "" {
		AppConfig.Upstream.AppTitle = v
	}

	routes := make([]Route, 0, 3)
	for _, suffix := range []string{"PRIMARY", "SECONDARY", "TERTIARY"} {
		apiKey := os.Getenv("OPENROUTER_API_KEY_" + suffix)
		model := os.Getenv("OPENROUTER_MODEL_" + suffix)
		if apiKey == "" || model == "" {
			continue
		}
		label := os.Getenv("OPENROUTER_LABEL_" + suffix)
		if label == "" {
			label = strings.ToLower(suffix)
		}
		routes = append(routes, Route{Label: label, APIKey: apiKey, Model: model})
	}
	AppConfig.Upstream.Routes = routes
}

func applyWorkerEnv() {
	if v := viper.GetInt("WORKER_POLL_MS"); v > 0 {
		AppConfig.Worker.PollMs = v
	}
	if v := viper.GetInt("WORKER_MAX_ATTEMPTS"); v > 0 {
		AppConfig.Worker.MaxAttempts = v
	}
	if v := viper.GetInt("WORKER_BACKOFF_BASE_SEC"); v > 0 {
		AppConfig.Worker.BackoffBaseSec = v
	}
}

func applySchedulerEnv() {
	if v := viper.GetString("STALE_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			AppConfig.Scheduler.StaleHours = n
		}
	}
	if v := viper.GetInt("SCHEDULER_BATCH_SIZE"); v > 0 {
		AppConfig.Scheduler.BatchSize = v
	}
}

func clamp() {
	if AppConfig.Worker.PollMs < 1000 {
		AppConfig.Worker.PollMs = 1000
	} else if AppConfig.Worker.PollMs > 60000 {
		AppConfig.Worker.PollMs = 60000
	}
	if AppConfig.Worker.MaxAttempts < 1 {
		AppConfig.Worker.MaxAttempts = 1
	} else if AppConfig.Worker.MaxAttempts > 20 {
		AppConfig.Worker.MaxAttempts = 20
	}
	if AppConfig.Worker.BackoffBaseSec < 10 {
		AppConfig.Worker.BackoffBaseSec = 10
	} else if AppConfig.Worker.BackoffBaseSec > 3600 {
		AppConfig.Worker.BackoffBaseSec = 3600
	}

	// StaleHours == 0 means "unset": leave it alone here so Scheduler.runOnce
	// can draw a fresh uniform 24..72 value on every run, per spec.md §4.7.
	if AppConfig.Scheduler.StaleHours != 0 {
		if AppConfig.Scheduler.StaleHours < 24 {
			AppConfig.Scheduler.StaleHours = 24
		} else if AppConfig.Scheduler.StaleHours > 72 {
			AppConfig.Scheduler.StaleHours = 72
		}
	}
	if AppConfig.Scheduler.BatchSize <= 0 {
		AppConfig.Scheduler.BatchSize = 200
	} else if AppConfig.Scheduler.BatchSize > 5000 {
		AppConfig.Scheduler.BatchSize = 5000
	}

	if AppConfig.Tools.TimeoutMs < 1000 {
		AppConfig.Tools.TimeoutMs = 1000
	} else if AppConfig.Tools.TimeoutMs > 20000 {
		AppConfig.Tools.TimeoutMs = 20000
	}
}
