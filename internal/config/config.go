package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Addr          string
	TLSCert       string
	TLSKey        string
	LogLevel      string
	LogPath       string
	CatalogXLSX   string
	ConstantsDir  string
	ConstantsPack string
	RateLimit     float64
	RateBurst     int
	SearchBudget  time.Duration
	Workers       int
}

// TLS reports whether both certificate and key are configured.
func (c Config) TLS() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

func defaults(v *viper.Viper) {
	v.SetDefault("addr", ":8443")
	v.SetDefault("log_level", "info")
	v.SetDefault("rate_limit", 5.0)
	v.SetDefault("rate_burst", 10)
	v.SetDefault("search_budget", "2s")
	v.SetDefault("workers", 0)
}

// Load reads envFiles (a missing file is fine) and then PYLON_* variables.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("PYLON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	defaults(v)
	// AutomaticEnv only covers keys viper already knows about.
	for _, k := range []string{"tls_cert", "tls_key", "log_path", "catalog_xlsx", "constants_dir", "constants_pack"} {
		if err := v.BindEnv(k); err != nil {
			return Config{}, fmt.Errorf("config: bind %s: %w", k, err)
		}
	}

	budget, err := time.ParseDuration(v.GetString("search_budget"))
	if err != nil {
		return Config{}, fmt.Errorf("config: PYLON_SEARCH_BUDGET: %w", err)
	}
	cfg := Config{
		Addr:          v.GetString("addr"),
		TLSCert:       v.GetString("tls_cert"),
		TLSKey:        v.GetString("tls_key"),
		LogLevel:      v.GetString("log_level"),
		LogPath:       v.GetString("log_path"),
		CatalogXLSX:   v.GetString("catalog_xlsx"),
		ConstantsDir:  v.GetString("constants_dir"),
		ConstantsPack: v.GetString("constants_pack"),
		RateLimit:     v.GetFloat64("rate_limit"),
		RateBurst:     v.GetInt("rate_burst"),
		SearchBudget:  budget,
		Workers:       v.GetInt("workers"),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("PYLON_ADDR is empty"))
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		errs = append(errs, errors.New("PYLON_TLS_CERT and PYLON_TLS_KEY must be set together"))
	}
	if c.RateLimit <= 0 {
		errs = append(errs, fmt.Errorf("PYLON_RATE_LIMIT must be positive, got %g", c.RateLimit))
	}
	if c.RateBurst <= 0 {
		errs = append(errs, fmt.Errorf("PYLON_RATE_BURST must be positive, got %d", c.RateBurst))
	}
	if c.SearchBudget < 0 {
		errs = append(errs, errors.New("PYLON_SEARCH_BUDGET must not be negative"))
	}
	if c.Workers < 0 {
		errs = append(errs, errors.New("PYLON_WORKERS must not be negative"))
	}
	if c.ConstantsPack != "" && !strings.Contains(c.ConstantsPack, "@") {
		errs = append(errs, fmt.Errorf("PYLON_CONSTANTS_PACK must be name@version, got %q", c.ConstantsPack))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
