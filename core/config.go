package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug            bool
		TestMode         bool
		Env              string
		Build            string
		AppName          string
		RollbarToken     string
		DefaultFromEmail mail.Address
		FrontendBaseURL  string
		SendgridAPIKey   string

		Server      ServerConfig
		Database    DatabaseConfig
		Redis       RedisConfig
		RateLimit   RateLimitConfig
		Circulation CirculationConfig
	}

	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Address  string
		Password string
		Prefix   string
	}

	RateLimitConfig struct {
		Limit  int
		Window time.Duration
	}

	CirculationConfig struct {
		FinePerDay  int64
		MaxPageSize int
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

// Enabled reports whether requests should be rate limited; a Redis address is required.
func (rl RateLimitConfig) Enabled(redis RedisConfig) bool {
	return redis.Address != "" && rl.Limit > 0 && rl.Window > 0
}

// NewConfig loads the configuration from defaults, `config/.env.<env>` (if it exists) and the environment.
// ENV selects the environment: DEV (local; default), TEST, QA, PROD. It is also used as the env prefix,
// e.g. DEV_DATABASE_NAME overrides database.name.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		Env:             env,
		Build:           v.GetString("build"),
		AppName:         v.GetString("appName"),
		RollbarToken:    v.GetString("rollbarToken"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		SendgridAPIKey:  v.GetString("sendgridAPIKey"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			Prefix:   v.GetString("redis.prefix"),
		},
		RateLimit: RateLimitConfig{
			Limit:  v.GetInt("rateLimit.limit"),
			Window: v.GetDuration("rateLimit.window"),
		},
		Circulation: CirculationConfig{
			FinePerDay:  v.GetInt64("circulation.finePerDay"),
			MaxPageSize: v.GetInt("circulation.maxPageSize"),
		},
	}

	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}
	conf.DefaultFromEmail = *from
	return conf
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Maktaba")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("defaultFromEmail", "Maktaba <noreply@localhost>")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("sendgridAPIKey", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.readTimeout", 15*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "maktaba")
	v.SetDefault("database.user", "maktaba")
	v.SetDefault("database.password", "maktaba")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.prefix", "maktaba:ratelimit")

	v.SetDefault("rateLimit.limit", 60)
	v.SetDefault("rateLimit.window", time.Minute)

	v.SetDefault("circulation.finePerDay", int64(10))
	v.SetDefault("circulation.maxPageSize", 100)
}

func (conf *Config) String() string {
	return fmt.Sprintf("%s (env=%s, build=%s, debug=%t)", conf.AppName, conf.Env, conf.Build, conf.Debug)
}
