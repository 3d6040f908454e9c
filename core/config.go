package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env       string
		Build     string
		AppName   string
		Debug     bool
		TestMode  bool
		SecretKey string
		WorkDir   string

		DefaultFromEmail string
		SendgridApiKey   string
		RollbarToken     string

		Server       ServerConfig
		Database     DatabaseConfig
		Redis        RedisConfig
		Blob         BlobConfig
		StudentAPI   StudentAPIConfig
		Registration RegistrationConfig
	}

	ServerConfig struct {
		Host            string
		Port            string
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
		URL      string
		DraftTTL time.Duration
	}

	BlobConfig struct {
		Driver      string // memory | s3
		S3Bucket    string
		S3Region    string
		S3Endpoint  string
		S3PathStyle bool
		S3AccessKey string // optional static credentials (MinIO); the AWS default chain is used when empty
		S3SecretKey string
	}

	StudentAPIConfig struct {
		BaseURL string
		Token   string
		Timeout time.Duration
	}

	RegistrationConfig struct {
		DraftStore      string // memory | postgres | redis
		PartnerField    string
		PartnerID       string
		MaxDocumentSize int64
		SubmitTimeout   time.Duration
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// NewConfig loads the app configuration from defaults, config/.env.<env> and the environment.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("appName", "School ERP")
	v.SetDefault("secretKey", "q1v9-x!m0h6^t@8e=2r$k+7u%fz3w(b)y4c#n5p&s_d*o")
	v.SetDefault("defaultFromEmail", "School ERP <noreply@localhost>")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.debugHost", "localhost:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.readTimeout", 10*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "school_erp")
	v.SetDefault("database.user", "school_erp")
	v.SetDefault("database.password", "school_erp")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.draftTTL", 72*time.Hour)

	v.SetDefault("blob.driver", "memory")
	v.SetDefault("blob.s3Bucket", "")
	v.SetDefault("blob.s3Region", "ap-south-1")
	v.SetDefault("blob.s3Endpoint", "")
	v.SetDefault("blob.s3PathStyle", false)
	v.SetDefault("blob.s3AccessKey", "")
	v.SetDefault("blob.s3SecretKey", "")

	v.SetDefault("studentApi.baseURL", "http://localhost:8080/api")
	v.SetDefault("studentApi.token", "")
	v.SetDefault("studentApi.timeout", 30*time.Second)

	v.SetDefault("registration.draftStore", "memory")
	v.SetDefault("registration.partnerField", "partnerId")
	v.SetDefault("registration.partnerId", "1")
	v.SetDefault("registration.maxDocumentSize", int64(5<<20))
	v.SetDefault("registration.submitTimeout", 2*time.Minute)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		WorkDir:          workDir,
		DefaultFromEmail: v.GetString("defaultFromEmail"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetString("server.port"),
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
			URL:      v.GetString("redis.url"),
			DraftTTL: v.GetDuration("redis.draftTTL"),
		},
		Blob: BlobConfig{
			Driver:      v.GetString("blob.driver"),
			S3Bucket:    v.GetString("blob.s3Bucket"),
			S3Region:    v.GetString("blob.s3Region"),
			S3Endpoint:  v.GetString("blob.s3Endpoint"),
			S3PathStyle: v.GetBool("blob.s3PathStyle"),
			S3AccessKey: v.GetString("blob.s3AccessKey"),
			S3SecretKey: v.GetString("blob.s3SecretKey"),
		},
		StudentAPI: StudentAPIConfig{
			BaseURL: v.GetString("studentApi.baseURL"),
			Token:   v.GetString("studentApi.token"),
			Timeout: v.GetDuration("studentApi.timeout"),
		},
		Registration: RegistrationConfig{
			DraftStore:      v.GetString("registration.draftStore"),
			PartnerField:    v.GetString("registration.partnerField"),
			PartnerID:       v.GetString("registration.partnerId"),
			MaxDocumentSize: v.GetInt64("registration.maxDocumentSize"),
			SubmitTimeout:   v.GetDuration("registration.submitTimeout"),
		},
	}
}
