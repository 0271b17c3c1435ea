package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/recon/internal/extract"
)

// FileName is the config file looked up in the working directory.
const FileName = "recon.yaml"

// EnvPrefix prefixes environment overrides, e.g. RECON_SERVER_ADDR.
const EnvPrefix = "RECON"

// Config represents the top-level recon.yaml configuration.
type Config struct {
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Generative GenerativeConfig `yaml:"generative" mapstructure:"generative"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Inbox      InboxConfig      `yaml:"inbox" mapstructure:"inbox"`
}

// ExtractConfig tunes header detection and column resolution.
type ExtractConfig struct {
	MaxHeaderScanRows   int      `yaml:"max_header_scan_rows" mapstructure:"max_header_scan_rows"`
	MinHeaderMatches    int      `yaml:"min_header_matches" mapstructure:"min_header_matches"`
	HeaderKeywords      []string `yaml:"header_keywords" mapstructure:"header_keywords"`
	DateKeywords        []string `yaml:"date_keywords" mapstructure:"date_keywords"`
	DescriptionKeywords []string `yaml:"description_keywords" mapstructure:"description_keywords"`
	PayeeKeywords       []string `yaml:"payee_keywords" mapstructure:"payee_keywords"`
	AmountKeywords      []string `yaml:"amount_keywords" mapstructure:"amount_keywords"`
	DebitKeywords       []string `yaml:"debit_keywords" mapstructure:"debit_keywords"`
	CreditKeywords      []string `yaml:"credit_keywords" mapstructure:"credit_keywords"`
	SummaryMarkers      []string `yaml:"summary_markers" mapstructure:"summary_markers"`
}

// GenerativeConfig selects the fallback model.
type GenerativeConfig struct {
	Model     string `yaml:"model" mapstructure:"model"`
	APIKeyEnv string `yaml:"api_key_env" mapstructure:"api_key_env"` // name of the env var holding the key
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr           string `yaml:"addr" mapstructure:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// InboxConfig points batch runs at a drop directory.
type InboxConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// Load reads a recon.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default() *Config {
	d := extract.DefaultConfig()
	return &Config{
		Extract: ExtractConfig{
			MaxHeaderScanRows:   d.MaxHeaderScanRows,
			MinHeaderMatches:    d.MinHeaderMatches,
			HeaderKeywords:      d.HeaderKeywords,
			DateKeywords:        d.DateKeywords,
			DescriptionKeywords: d.DescriptionKeywords,
			PayeeKeywords:       d.PayeeKeywords,
			AmountKeywords:      d.AmountKeywords,
			DebitKeywords:       d.DebitKeywords,
			CreditKeywords:      d.CreditKeywords,
			SummaryMarkers:      d.SummaryMarkers,
		},
		Generative: GenerativeConfig{
			Model:     "gemini-2.5-flash",
			APIKeyEnv: "GEMINI_API_KEY",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 32 << 20,
		},
		Log:   LogConfig{Level: "info"},
		Inbox: InboxConfig{Dir: "import"},
	}
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"log-level": "log.level",
	"addr":      "server.addr",
	"model":     "generative.model",
}

// Build layers defaults, the config file, RECON_* environment variables and
// any flags in flags that were registered under a known name. An empty
// cfgFile means recon.yaml in the working directory, if it exists.
func Build(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetConfigType("yaml")
	switch {
	case cfgFile != "":
		v.SetConfigFile(cfgFile)
	case fileExists(FileName):
		v.SetConfigFile(FileName)
	}
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("extract.max_header_scan_rows", d.Extract.MaxHeaderScanRows)
	v.SetDefault("extract.min_header_matches", d.Extract.MinHeaderMatches)
	v.SetDefault("extract.header_keywords", d.Extract.HeaderKeywords)
	v.SetDefault("extract.date_keywords", d.Extract.DateKeywords)
	v.SetDefault("extract.description_keywords", d.Extract.DescriptionKeywords)
	v.SetDefault("extract.payee_keywords", d.Extract.PayeeKeywords)
	v.SetDefault("extract.amount_keywords", d.Extract.AmountKeywords)
	v.SetDefault("extract.debit_keywords", d.Extract.DebitKeywords)
	v.SetDefault("extract.credit_keywords", d.Extract.CreditKeywords)
	v.SetDefault("extract.summary_markers", d.Extract.SummaryMarkers)
	v.SetDefault("generative.model", d.Generative.Model)
	v.SetDefault("generative.api_key_env", d.Generative.APIKeyEnv)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.max_upload_bytes", d.Server.MaxUploadBytes)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("inbox.dir", d.Inbox.Dir)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ExtractConfig converts the extract section into an engine config. A nil
// now means time.Now.
func (c *Config) ExtractConfig(now func() time.Time) extract.Config {
	e := c.Extract
	return extract.Config{
		HeaderKeywords:      e.HeaderKeywords,
		MinHeaderMatches:    e.MinHeaderMatches,
		MaxHeaderScanRows:   e.MaxHeaderScanRows,
		DateKeywords:        e.DateKeywords,
		DescriptionKeywords: e.DescriptionKeywords,
		PayeeKeywords:       e.PayeeKeywords,
		AmountKeywords:      e.AmountKeywords,
		DebitKeywords:       e.DebitKeywords,
		CreditKeywords:      e.CreditKeywords,
		SummaryMarkers:      e.SummaryMarkers,
		Now:                 now,
	}
}

// APIKey returns the generative API key from the configured environment
// variable, or "" when unset.
func (c *Config) APIKey() string {
	if c.Generative.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Generative.APIKeyEnv)
}
