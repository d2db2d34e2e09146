package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultClaudeModel       = "claude-sonnet-4-6"
	defaultClaudeURL         = "https://api.anthropic.com"
	defaultRemoteConcurrency = 20
	defaultRetryBaseDelay    = time.Second
	defaultRetryMaxDelay     = 30 * time.Second
	defaultRequestTimeout    = 60 * time.Second
)

// Config is the immutable snapshot of options for one run. It is built once
// from viper and passed explicitly from then on.
type Config struct {
	Paths      []string
	Tokenizers []string

	Sort     bool
	JSON     bool
	Flat     bool
	Count    bool
	NoIgnore bool
	Hidden   bool
	Depth    int // 0 for no limit
	Offline  bool
	NoColor  bool
	Copy     bool
	Debug    bool
	Threads  int // Local tokenization workers; 0 for one per CPU

	APIKey            string
	ClaudeModel       string
	ClaudeURL         string
	RemoteConcurrency int
	RemoteRPS         float64
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	RequestTimeout    time.Duration
	HFTokenizer       string
}

// setConfigDefaults registers defaults for keys that have no flag.
func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("claude_model", defaultClaudeModel)
	v.SetDefault("claude_url", defaultClaudeURL)
	v.SetDefault("remote_concurrency", defaultRemoteConcurrency)
	v.SetDefault("remote_rps", 0)
	v.SetDefault("retry_base_delay", defaultRetryBaseDelay)
	v.SetDefault("retry_max_delay", defaultRetryMaxDelay)
	v.SetDefault("request_timeout", defaultRequestTimeout)
	v.SetDefault("hf_tokenizer", "")
	v.SetDefault("threads", 0)
}

// readConfigFile loads the optional config file and environment bindings.
// A missing config file is not an error.
func readConfigFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "treetok"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("treetok")
		v.SetConfigType("toml")
	}

	v.SetEnvPrefix("TREETOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// TREETOK_API_KEY wins over ANTHROPIC_API_KEY.
	if err := v.BindEnv("api_key", "TREETOK_API_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return err
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if cfgFile == "" && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	return nil
}

// loadConfig builds the run snapshot from v.
func loadConfig(v *viper.Viper, paths []string) (Config, error) {
	cfg := Config{
		Paths:             paths,
		Tokenizers:        v.GetStringSlice("tokenizers"),
		Sort:              v.GetBool("sort"),
		JSON:              v.GetBool("json"),
		Flat:              v.GetBool("flat"),
		Count:             v.GetBool("count"),
		NoIgnore:          v.GetBool("no_ignore"),
		Hidden:            v.GetBool("hidden"),
		Depth:             v.GetInt("depth"),
		Offline:           v.GetBool("offline"),
		NoColor:           v.GetBool("no_color"),
		Copy:              v.GetBool("copy"),
		Debug:             v.GetBool("debug"),
		Threads:           v.GetInt("threads"),
		APIKey:            strings.TrimSpace(v.GetString("api_key")),
		ClaudeModel:       v.GetString("claude_model"),
		ClaudeURL:         v.GetString("claude_url"),
		RemoteConcurrency: v.GetInt("remote_concurrency"),
		RemoteRPS:         v.GetFloat64("remote_rps"),
		RetryBaseDelay:    v.GetDuration("retry_base_delay"),
		RetryMaxDelay:     v.GetDuration("retry_max_delay"),
		RequestTimeout:    v.GetDuration("request_timeout"),
		HFTokenizer:       v.GetString("hf_tokenizer"),
	}

	if cfg.Depth < 0 {
		return cfg, fmt.Errorf("%w: --depth must not be negative", ErrBadInvocation)
	}
	if cfg.Count && (cfg.JSON || cfg.Flat || cfg.Sort) {
		return cfg, fmt.Errorf("%w: --count cannot be combined with --json, --flat or --sort", ErrBadInvocation)
	}
	if cfg.Threads < 0 {
		return cfg, fmt.Errorf("%w: --threads must not be negative", ErrBadInvocation)
	}
	if cfg.RemoteConcurrency <= 0 {
		cfg.RemoteConcurrency = defaultRemoteConcurrency
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBaseDelay
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		cfg.RetryMaxDelay = cfg.RetryBaseDelay
	}
	if cfg.Offline {
		cfg.APIKey = ""
	}

	dashes := 0
	for _, p := range cfg.Paths {
		if p == stdinPath {
			dashes++
		}
	}
	if dashes > 1 {
		return cfg, fmt.Errorf("%w: at most one `-` (stdin) path allowed", ErrBadInvocation)
	}
	return cfg, nil
}
