package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// InitializeViper loads .env, sets defaults for every spec.md §6 config
// key, reads the config file (if any), and binds environment variables —
// following the teacher's InitializeViper/setupViper/setDefaults sequence.
func InitializeViper(cfgFile string) error {
	loadEnvFile()
	setupViper(cfgFile)
	setDefaults()

	if err := readConfigFile(); err != nil {
		return err
	}

	if err := bindEnvironmentVariables(); err != nil {
		return err
	}

	setupDevelopmentLogging()

	return nil
}

// loadEnvFile loads a .env file if present; its absence is not an error.
func loadEnvFile() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "config: no .env file loaded: %v\n", err)
	}
}

func setupViper(cfgFile string) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		return
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/podcrawl")
}

// setDefaults fills in every recognized key's default, so a bare
// `podcrawl crawl` with no config file still runs with sane values.
func setDefaults() {
	viper.SetDefault("app", map[string]any{
		"environment": "production",
		"debug":       false,
	})

	viper.SetDefault("logger", map[string]any{
		"level":       "info",
		"encoding":    "json",
		"output":      "stdout",
		"debug":       false,
		"caller":      false,
		"stacktrace":  false,
		"max_size":    DefaultMaxLogSize,
		"max_backups": DefaultMaxLogBackups,
		"max_age":     DefaultMaxLogAge,
		"compress":    true,
	})

	viper.SetDefault("crawler", map[string]any{
		"fetchers_per_pod":              6,
		"parsers_per_pod":               2,
		"fetcher_workers":               200,
		"parser_workers":                50,
		"enable_cpu_affinity":           false,
		"cores_per_pod":                 0,
		"politeness_delay_seconds":      70,
		"robots_cache_ttl_seconds":      86400,
		"http_timeout_seconds":         30,
		"http_max_retries":              3,
		"bloom_filter_capacity":         10_000_000,
		"bloom_filter_error_rate":       0.01,
		"parse_queue_soft_limit":        20_000,
		"parse_queue_hard_limit":        80_000,
		"user_agent_template":           "podcrawl/1.0 (+mailto:{email})",
		"seeded_urls_only":              false,
		"resume":                        false,
		"global_coordination_redis_pod": 0,
	})
}

func readConfigFile() error {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Fprintf(os.Stderr, "config: no config file found, using defaults and environment variables\n")
			return nil
		}
		return fmt.Errorf("config: read config file: %w", err)
	}
	return nil
}

// bindEnvironmentVariables maps section-level environment variables that
// don't follow viper's automatic APP_DEBUG-style dotted-to-underscore
// mapping, plus enables AutomaticEnv for everything else.
func bindEnvironmentVariables() error {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.BindEnv("app.environment", "APP_ENV"); err != nil {
		return fmt.Errorf("config: bind APP_ENV: %w", err)
	}
	if err := viper.BindEnv("app.debug", "APP_DEBUG"); err != nil {
		return fmt.Errorf("config: bind APP_DEBUG: %w", err)
	}
	if err := viper.BindEnv("logger.level", "LOG_LEVEL"); err != nil {
		return fmt.Errorf("config: bind LOG_LEVEL: %w", err)
	}
	if err := viper.BindEnv("logger.encoding", "LOG_ENCODING"); err != nil {
		return fmt.Errorf("config: bind LOG_ENCODING: %w", err)
	}
	if err := viper.BindEnv("crawler.seed_file", "CRAWLER_SEED_FILE"); err != nil {
		return fmt.Errorf("config: bind CRAWLER_SEED_FILE: %w", err)
	}
	if err := viper.BindEnv("crawler.exclusion_file", "CRAWLER_EXCLUSION_FILE"); err != nil {
		return fmt.Errorf("config: bind CRAWLER_EXCLUSION_FILE: %w", err)
	}

	// CRAWLER_DEBUG_POD_ASSIGNMENT is read directly via os.Getenv, not
	// through viper, per spec.md §6's "environment toggle" wording — it is
	// a debug switch, not a persisted config value.

	return nil
}

func setupDevelopmentLogging() {
	if viper.GetBool("app.debug") {
		viper.Set("logger.level", "debug")
	}
	if viper.GetString("app.environment") == "development" {
		viper.Set("logger.encoding", "console")
		viper.Set("logger.caller", true)
		viper.Set("logger.stacktrace", true)
	}
}

// DebugPodAssignment reads CRAWLER_DEBUG_POD_ASSIGNMENT directly from the
// environment, bypassing viper.
func DebugPodAssignment() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("CRAWLER_DEBUG_POD_ASSIGNMENT")))
	return v == "true" || v == "1" || v == "yes"
}
