package config

import (
	"log"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const DefaultEnvFile = "src/.env"

type Config struct {
	Port string

	GeminiAPIKey      string
	VisionModel       string
	ChatModel         string
	ChatFallbackModel string
	ChatTemperature   float64

	CountdownSeconds int
	CameraDevice     int

	AssetDir      string
	DiagramPath   string
	CatalogSource string // dir | db

	DBType      string // sqlite | postgres
	DatabaseURL string
	SQLitePath  string

	TelegramBotToken string
	WebhookURL       string
}

// Load читает окружение; незаданные переменные добираются из ENV_FILE (src/.env)
// и необязательного config.yaml. Отсутствие ключа Gemini не фатально.
func Load() *Config {
	envFile := strings.TrimSpace(os.Getenv("ENV_FILE"))
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	// godotenv не перетирает уже выставленные переменные
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("config: cannot load %s: %v", envFile, err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("config: config.yaml: %v", err)
		}
	}

	cfg := &Config{
		Port: v.GetString("PORT"),

		GeminiAPIKey:      strings.TrimSpace(v.GetString("GEMINI_API_KEY")),
		VisionModel:       v.GetString("VISION_MODEL"),
		ChatModel:         v.GetString("CHAT_MODEL"),
		ChatFallbackModel: v.GetString("CHAT_FALLBACK_MODEL"),
		ChatTemperature:   v.GetFloat64("CHAT_TEMPERATURE"),

		CountdownSeconds: v.GetInt("COUNTDOWN_SECONDS"),
		CameraDevice:     v.GetInt("CAMERA_DEVICE"),

		AssetDir:      v.GetString("ASSET_DIR"),
		DiagramPath:   v.GetString("DIAGRAM_PATH"),
		CatalogSource: strings.ToLower(v.GetString("CATALOG_SOURCE")),

		DBType:      strings.ToLower(v.GetString("DB_TYPE")),
		DatabaseURL: resolveDSN(v),
		SQLitePath:  v.GetString("SQLITE_PATH"),

		TelegramBotToken: strings.TrimSpace(v.GetString("TELEGRAM_BOT_TOKEN")),
		WebhookURL:       strings.TrimSpace(v.GetString("WEBHOOK_URL")),
	}
	if strings.TrimSpace(cfg.Port) == "" {
		cfg.Port = "8000"
	}
	if cfg.CountdownSeconds < 0 {
		cfg.CountdownSeconds = 0
	}
	if cfg.GeminiAPIKey == "" {
		log.Printf("config: GEMINI_API_KEY not set (env or %s); recognition and chat will fail", envFile)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8000")
	v.SetDefault("VISION_MODEL", "gemini-2.5-pro")
	v.SetDefault("CHAT_MODEL", "gemini-2.5-pro")
	v.SetDefault("CHAT_FALLBACK_MODEL", "gemini-2.5-pro")
	v.SetDefault("CHAT_TEMPERATURE", 0.7)
	v.SetDefault("COUNTDOWN_SECONDS", 2)
	v.SetDefault("CAMERA_DEVICE", 0)
	v.SetDefault("ASSET_DIR", "assets/components")
	v.SetDefault("DIAGRAM_PATH", "assets/PAD.png")
	v.SetDefault("CATALOG_SOURCE", "dir")
	v.SetDefault("DB_TYPE", "sqlite")
	v.SetDefault("SQLITE_PATH", "neuro.db")
}

// resolveDSN: DATABASE_URL, иначе собираем из POSTGRES_* / PG* (только для postgres).
func resolveDSN(v *viper.Viper) string {
	if s := strings.TrimSpace(v.GetString("DATABASE_URL")); s != "" {
		return s
	}
	if strings.ToLower(v.GetString("DB_TYPE")) != "postgres" {
		return ""
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getOr(v, "POSTGRES_USER", "neuro"), v.GetString("POSTGRES_PASSWORD")),
		Host:     net.JoinHostPort(getOr(v, "PGHOST", "db"), getOr(v, "PGPORT", "5432")),
		Path:     "/" + getOr(v, "POSTGRES_DB", "neuro"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func getOr(v *viper.Viper, k, def string) string {
	if s := strings.TrimSpace(v.GetString(k)); s != "" {
		return s
	}
	return def
}
