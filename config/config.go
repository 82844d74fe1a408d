package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string
	LogPath     string
	LogMaxMB    int
	DBPath      string
	DatabaseURL string
	RedisURL    string
	Provider    ProviderConfig
	Qualifier   QualifierConfig
	Jobs        JobsConfig
	Search      SearchConfig
}

type ProviderConfig struct {
	APIKey  string
	Host    string
	BaseURL string
	Timeout time.Duration
}

type QualifierConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

type JobsConfig struct {
	Retention time.Duration
	SweepCron string
}

// SearchConfig holds the engine tuning knobs, loaded from search.yaml
type SearchConfig struct {
	RelaxationSteps      []int             `yaml:"relaxation_steps"`
	BatchSize            int               `yaml:"batch_size"`
	BatchDelayMS         int               `yaml:"batch_delay_ms"`
	DefaultThreshold     int               `yaml:"default_threshold"`
	MaxResultsCap        int               `yaml:"max_results_cap"`
	TriggerMaxResultsCap int               `yaml:"trigger_max_results_cap"`
	ProviderPageCap      int               `yaml:"provider_page_cap"`
	CacheMaxAgeDays      int               `yaml:"cache_max_age_days"`
	ExcerptLen           int               `yaml:"message_excerpt_len"`
	Boroughs             map[string]string `yaml:"boroughs"`
}

func (s SearchConfig) BatchDelay() time.Duration {
	return time.Duration(s.BatchDelayMS) * time.Millisecond
}

func (s SearchConfig) CacheMaxAge() time.Duration {
	return time.Duration(s.CacheMaxAgeDays) * 24 * time.Hour
}

func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		RelaxationSteps:      []int{5, 4, 3, 2, 1},
		BatchSize:            10,
		BatchDelayMS:         1000,
		DefaultThreshold:     15,
		MaxResultsCap:        10,
		TriggerMaxResultsCap: 5,
		ProviderPageCap:      20,
		CacheMaxAgeDays:      30,
		ExcerptLen:           150,
		Boroughs:             map[string]string{},
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "3000"),
		LogPath:     getEnv("LOG_PATH", "dealfinder.log"),
		LogMaxMB:    getEnvInt("LOG_MAX_MB", 2),
		DBPath:      os.Getenv("DB_PATH"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		Provider: ProviderConfig{
			APIKey:  os.Getenv("RAPIDAPI_KEY"),
			Host:    getEnv("RAPIDAPI_HOST", "streeteasy-api.p.rapidapi.com"),
			BaseURL: getEnv("STREETEASY_BASE_URL", "https://streeteasy-api.p.rapidapi.com"),
			Timeout: getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
		},
		Qualifier: QualifierConfig{
			APIKey:      os.Getenv("ANTHROPIC_API_KEY"),
			BaseURL:     getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			Model:       getEnv("QUALIFIER_MODEL", "claude-3-haiku-20240307"),
			MaxTokens:   getEnvInt("QUALIFIER_MAX_TOKENS", 2000),
			Temperature: 0.1,
			Timeout:     getEnvDuration("QUALIFIER_TIMEOUT", 60*time.Second),
		},
		Jobs: JobsConfig{
			Retention: getEnvDuration("JOB_RETENTION", time.Hour),
			SweepCron: getEnv("SWEEP_CRON", "*/5 * * * *"),
		},
		Search: DefaultSearchConfig(),
	}

	if err := cfg.loadSearchConfig(getEnv("SEARCH_CONFIG", "config/search.yaml")); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSearchConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	search, err := ParseSearchConfig(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	c.Search = search
	return nil
}

// ParseSearchConfig overlays YAML onto the defaults. Fields absent from
// the document keep their default values.
func ParseSearchConfig(data []byte) (SearchConfig, error) {
	search := DefaultSearchConfig()
	if err := yaml.Unmarshal(data, &search); err != nil {
		return SearchConfig{}, err
	}

	for i, step := range search.RelaxationSteps {
		if step <= 0 {
			return SearchConfig{}, fmt.Errorf("relaxation step %d must be positive", step)
		}
		if i > 0 && step >= search.RelaxationSteps[i-1] {
			return SearchConfig{}, fmt.Errorf("relaxation steps must be strictly decreasing")
		}
	}
	if search.BatchSize <= 0 {
		return SearchConfig{}, fmt.Errorf("batch_size must be positive")
	}
	if search.Boroughs == nil {
		search.Boroughs = map[string]string{}
	}
	return search, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
