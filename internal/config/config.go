package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config es la configuración del servicio.
// Orden de carga: defaults -> archivo YAML (CONFIG_FILE, opcional) -> env vars.
type Config struct {
	// Addr de escucha HTTP (":8080"). PORT en env.
	Addr string `yaml:"addr"`

	// DSN de Postgres. Vacío => store en memoria.
	DBDSN string `yaml:"db_dsn"`

	Log LogConfig `yaml:"log"`

	// StoreTimeout acota cada operación contra el store.
	StoreTimeout time.Duration `yaml:"store_timeout"`

	// SweepSchedule es la expresión cron del barrido de conexiones muertas.
	SweepSchedule string `yaml:"sweep_schedule"`

	// WSIdleTimeout: una conexión websocket sin frames (ni pongs) por más de esto
	// se da por muerta. Conviene que sea al menos dos intervalos de sweep.
	WSIdleTimeout time.Duration `yaml:"ws_idle_timeout"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	Identity IdentityConfig `yaml:"identity"`
	Mail     MailConfig     `yaml:"mail"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
	App    string `yaml:"app"`
}

// IdentityConfig apunta al IAM que verifica tokens y resuelve perfiles.
// Sin BaseURL el servicio arranca en modo dev (X-Debug-User-ID).
type IdentityConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type MailConfig struct {
	RelayURL    string        `yaml:"relay_url"`
	APIKey      string        `yaml:"api_key"`
	From        string        `yaml:"from"`
	FrontendURL string        `yaml:"frontend_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Retries     int           `yaml:"retries"`
}

func Default() Config {
	return Config{
		Addr:          ":8080",
		Log:           LogConfig{Level: "info", Format: "text", App: "slot-swapper"},
		StoreTimeout:  10 * time.Second,
		SweepSchedule: "@every 30s",
		WSIdleTimeout: 60 * time.Second,
		ReadTimeout:   5 * time.Second,
		WriteTimeout:  10 * time.Second,
		Identity:      IdentityConfig{Timeout: 5 * time.Second},
		Mail: MailConfig{
			From:        "SlotSwapper <no-reply@slotswapper.local>",
			FrontendURL: "http://localhost:5173",
			Timeout:     5 * time.Second,
			Retries:     2,
		},
	}
}

// Load arma la config desde CONFIG_FILE (si existe) y env.
func Load() (Config, error) {
	return LoadFrom(os.Getenv("CONFIG_FILE"), os.LookupEnv)
}

// LoadFrom es Load con fuentes inyectables (tests).
func LoadFrom(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if p := strings.TrimSpace(path); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", p, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", p, err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}

	cfg.Normalize()
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = d
		return nil
	}

	if v, ok := lookup("PORT"); ok && strings.TrimSpace(v) != "" {
		cfg.Addr = ":" + strings.TrimSpace(v)
	}
	str("DB_DSN", &cfg.DBDSN)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("LOG_FILE", &cfg.Log.File)
	str("APP_NAME", &cfg.Log.App)
	str("SWEEP_SCHEDULE", &cfg.SweepSchedule)
	str("IDENTITY_BASE_URL", &cfg.Identity.BaseURL)
	str("IDENTITY_API_KEY", &cfg.Identity.APIKey)
	str("MAIL_RELAY_URL", &cfg.Mail.RelayURL)
	str("MAIL_RELAY_API_KEY", &cfg.Mail.APIKey)
	str("MAIL_FROM", &cfg.Mail.From)
	str("FRONTEND_URL", &cfg.Mail.FrontendURL)

	if err := dur("STORE_TIMEOUT", &cfg.StoreTimeout); err != nil {
		return err
	}
	if err := dur("WS_IDLE_TIMEOUT", &cfg.WSIdleTimeout); err != nil {
		return err
	}
	if v, ok := lookup("MAIL_RETRIES"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: MAIL_RETRIES: %w", err)
		}
		cfg.Mail.Retries = n
	}
	return nil
}

// Normalize completa valores vacíos o inválidos con defaults.
func (c *Config) Normalize() {
	def := Default()
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = def.Addr
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = def.StoreTimeout
	}
	if strings.TrimSpace(c.SweepSchedule) == "" {
		c.SweepSchedule = def.SweepSchedule
	}
	if c.WSIdleTimeout <= 0 {
		c.WSIdleTimeout = def.WSIdleTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.Identity.Timeout <= 0 {
		c.Identity.Timeout = def.Identity.Timeout
	}
	if c.Mail.Timeout <= 0 {
		c.Mail.Timeout = def.Mail.Timeout
	}
	if c.Mail.Retries < 0 {
		c.Mail.Retries = 0
	}
	if strings.TrimSpace(c.Mail.From) == "" {
		c.Mail.From = def.Mail.From
	}
	if strings.TrimSpace(c.Log.App) == "" {
		c.Log.App = def.Log.App
	}
}
