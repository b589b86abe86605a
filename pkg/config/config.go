package config

import (
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	RenewalOrderCapFirst     = "cap_first"
	RenewalOrderOverdueFirst = "overdue_first"
)

type Config struct {
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path" required:"true"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries" default:"5"`
	ServerHost                string        `koanf:"server_host" default:"0.0.0.0"`
	ServerPort                int           `koanf:"server_port" default:"8080"`
	JWTSecret                 string        `koanf:"jwt_secret" required:"true"`
	SessionDurationHours      int           `koanf:"session_duration_hours" default:"168"`
	WorkerProcesses           int           `koanf:"worker_processes" default:"2"`
	ExpiryIntervalMinutes     int           `koanf:"expiry_interval_minutes" default:"60"`

	// Lending policy
	MaxActiveLoans        int    `koanf:"max_active_loans" default:"3"`
	MaxActiveReservations int    `koanf:"max_active_reservations" default:"3"`
	LoanDurationDays      int    `koanf:"loan_duration_days" default:"15"`
	ReservationHoldDays   int    `koanf:"reservation_hold_days" default:"7"`
	MaxRenewals           int    `koanf:"max_renewals" default:"2"`
	OverdueGraceDays      int    `koanf:"overdue_grace_days" default:"7"`
	RenewalCheckOrder     string `koanf:"renewal_check_order" default:"cap_first"`
}

const configFileENV = "CONFIG_FILE"

func configFilePath() string {
	path := os.Getenv(configFileENV)
	if path == "" {
		path = "/config/config.yaml"
	}
	return path
}

// New loads the config file (if there is one) and then lets environment
// variables override it. Keys are the snake_case koanf tags, so
// SERVER_PORT overrides server_port.
func New() (*Config, error) {
	k := koanf.New(".")

	path := configFilePath()
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "loading config file %s", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.WithStack(err)
	}

	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a config with defaults applied and an in-memory
// database.
func NewForTest() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.DatabaseFilePath = ":memory:"
	cfg.ServerHost = "127.0.0.1"
	cfg.JWTSecret = "test-secret"
	cfg.DatabaseConnectRetryDelay = 0
	return cfg
}

func (cfg *Config) validate() error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Tag.Get("required") != "true" {
			continue
		}
		if v.Field(i).IsZero() {
			key := field.Tag.Get("koanf")
			return errors.Errorf("missing required config: %s (%s)", strings.ToUpper(key), key)
		}
	}

	switch cfg.RenewalCheckOrder {
	case RenewalOrderCapFirst, RenewalOrderOverdueFirst:
	default:
		return errors.Errorf("invalid renewal_check_order %q: must be %s or %s",
			cfg.RenewalCheckOrder, RenewalOrderCapFirst, RenewalOrderOverdueFirst)
	}

	limits := map[string]int{
		"max_active_loans":        cfg.MaxActiveLoans,
		"max_active_reservations": cfg.MaxActiveReservations,
		"loan_duration_days":      cfg.LoanDurationDays,
		"reservation_hold_days":   cfg.ReservationHoldDays,
	}
	for key, value := range limits {
		if value < 1 {
			return errors.Errorf("%s must be at least 1", key)
		}
	}
	if cfg.MaxRenewals < 0 || cfg.OverdueGraceDays < 0 {
		return errors.New("max_renewals and overdue_grace_days can't be negative")
	}

	return nil
}
