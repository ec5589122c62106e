package config

import (
	"os"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// AppConfig is the top-level application configuration, loaded from a YAML
// file with selective environment overrides.
type AppConfig struct {
	System   SysConfig      `yaml:"system"`
	Web      WebConfig      `yaml:"web"`
	Database DBConfig       `yaml:"database"`
	Logger   LogConfig      `yaml:"logger"`
	Telegram TelegramConfig `yaml:"telegram"`
	Smtp     SmtpConfig     `yaml:"smtp"`
	Shop     ShopConfig     `yaml:"shop"`
}

type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
}

type WebConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	JwtSecret string `yaml:"jwt_secret"`
}

type DBConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	MaxConn  int    `yaml:"max_conn"`
	IdleConn int    `yaml:"idle_conn"`
	Debug    bool   `yaml:"debug"`
}

type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ApiURL   string `yaml:"api_url"`
}

type SmtpConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type ShopConfig struct {
	// CartTTLHours is the abandonment age after which carts are purged.
	CartTTLHours int `yaml:"cart_ttl_hours"`
	// NotifyMaxRetries bounds notification delivery attempts.
	NotifyMaxRetries int `yaml:"notify_max_retries"`
	// NotifyBackoffSeconds is the base for exponential retry backoff.
	NotifyBackoffSeconds int `yaml:"notify_backoff_seconds"`
	// OtpTTLMinutes is how long a Telegram login code stays valid.
	OtpTTLMinutes int `yaml:"otp_ttl_minutes"`
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "dukan",
		Location: "Asia/Tashkent",
		Workdir:  "/var/dukan",
		Debug:    true,
	},
	Web: WebConfig{
		Host:      "0.0.0.0",
		Port:      1816,
		JwtSecret: "9b6de5cc-dukan-secret",
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "dukan",
		User:     "postgres",
		MaxConn:  100,
		IdleConn: 10,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: false,
		Filename:   "/var/dukan/dukan.log",
	},
	Telegram: TelegramConfig{
		ApiURL: "https://api.telegram.org",
	},
	Shop: ShopConfig{
		CartTTLHours:         72,
		NotifyMaxRetries:     5,
		NotifyBackoffSeconds: 30,
		OtpTTLMinutes:        10,
	},
}

func setEnvValue(name string, val *string) {
	if v, ok := os.LookupEnv(name); ok {
		*val = v
	}
}

func setEnvIntValue(name string, val *int) {
	if v, ok := os.LookupEnv(name); ok {
		*val = cast.ToInt(v)
	}
}

func setEnvBoolValue(name string, val *bool) {
	if v, ok := os.LookupEnv(name); ok {
		*val = cast.ToBool(v)
	}
}

// LoadConfig reads the YAML config file and applies DUKAN_* environment
// overrides. A missing file yields the defaults.
func LoadConfig(cfile string) *AppConfig {
	cfg := DefaultAppConfig
	if cfile != "" {
		if data, err := os.ReadFile(cfile); err == nil {
			_ = yaml.Unmarshal(data, cfg)
		}
	}

	setEnvValue("DUKAN_SYSTEM_WORKDIR", &cfg.System.Workdir)
	setEnvBoolValue("DUKAN_SYSTEM_DEBUG", &cfg.System.Debug)

	setEnvValue("DUKAN_WEB_HOST", &cfg.Web.Host)
	setEnvIntValue("DUKAN_WEB_PORT", &cfg.Web.Port)
	setEnvValue("DUKAN_WEB_JWT_SECRET", &cfg.Web.JwtSecret)

	setEnvValue("DUKAN_DB_TYPE", &cfg.Database.Type)
	setEnvValue("DUKAN_DB_HOST", &cfg.Database.Host)
	setEnvIntValue("DUKAN_DB_PORT", &cfg.Database.Port)
	setEnvValue("DUKAN_DB_NAME", &cfg.Database.Name)
	setEnvValue("DUKAN_DB_USER", &cfg.Database.User)
	setEnvValue("DUKAN_DB_PASSWD", &cfg.Database.Passwd)

	setEnvValue("DUKAN_TELEGRAM_BOT_TOKEN", &cfg.Telegram.BotToken)
	setEnvValue("DUKAN_SMTP_HOST", &cfg.Smtp.Host)
	setEnvIntValue("DUKAN_SMTP_PORT", &cfg.Smtp.Port)
	setEnvValue("DUKAN_SMTP_USERNAME", &cfg.Smtp.Username)
	setEnvValue("DUKAN_SMTP_PASSWORD", &cfg.Smtp.Password)

	return cfg
}
