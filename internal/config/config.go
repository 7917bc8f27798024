package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// 決済ゲートウェイのベースURL（sandbox / 本番の2つだけ）
const (
	GatewaySandboxBaseURL    = "https://sandbox.sslcommerz.com"
	GatewayProductionBaseURL = "https://securepay.sslcommerz.com"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // あれば最優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string

	RedisAddr     string // ゲストカート用
	RedisPassword string

	JWTSecret string // JWT署名シークレット

	GoEnv  string // dev/prod
	AppURL string // フロントURL（決済後のリダイレクト先）
	// ゲートウェイから見えるこのAPIのURL（success_urlなどに使う）
	PublicAPIURL string

	Gateway GatewayConfig
	Pricing PricingConfig
	Log     LogConfig
}

// 決済ゲートウェイの認証情報
type GatewayConfig struct {
	StoreID       string
	StorePassword string
	Sandbox       bool
	// コールバックを検証APIで再確認するか（本番では常にtrue）
	Validate bool
	Timeout  time.Duration
	Currency string
}

// BaseURLはsandboxフラグで2つのURLを切り替える
func (g GatewayConfig) BaseURL() string {
	if g.Sandbox {
		return GatewaySandboxBaseURL
	}
	return GatewayProductionBaseURL
}

type PricingConfig struct {
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
	TaxRate               decimal.Decimal
}

type LogConfig struct {
	Level  string
	Format string // json / text
	File   string // 空ならstdoutのみ
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := atoiDefault("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	sandbox, err := boolDefault("GATEWAY_SANDBOX", true)
	if err != nil {
		return Config{}, err
	}
	validate, err := boolDefault("GATEWAY_VALIDATE", true)
	if err != nil {
		return Config{}, err
	}
	//本番は検証APIを必ず通す（POSTされた項目だけでpaidにしない）
	if !sandbox {
		validate = true
	}
	timeout, err := durationDefault("GATEWAY_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	threshold, err := decimalDefault("FREE_SHIPPING_THRESHOLD", "100")
	if err != nil {
		return Config{}, err
	}
	fee, err := decimalDefault("SHIPPING_FEE", "10")
	if err != nil {
		return Config{}, err
	}
	taxRate, err := decimalDefault("TAX_RATE", "0.10")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: getenv("PORT", "8080"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       getenv("POSTGRES_DB", "storefront"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		GoEnv:  getenv("GO_ENV", "dev"),
		AppURL: strings.TrimRight(getenv("APP_URL", "http://localhost:3000"), "/"),

		Gateway: GatewayConfig{
			StoreID:       os.Getenv("GATEWAY_STORE_ID"),
			StorePassword: os.Getenv("GATEWAY_STORE_PASSWORD"),
			Sandbox:       sandbox,
			Validate:      validate,
			Timeout:       timeout,
			Currency:      getenv("CURRENCY", "BDT"),
		},
		Pricing: PricingConfig{
			FreeShippingThreshold: threshold,
			ShippingFee:           fee,
			TaxRate:               taxRate,
		},
		Log: LogConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "json"),
			File:   os.Getenv("LOG_FILE"),
		},
	}

	cfg.PublicAPIURL = strings.TrimRight(getenv("PUBLIC_API_URL", "http://localhost:"+cfg.Port), "/")

	//必須チェック
	if cfg.DatabaseURL == "" && cfg.PostgresPassword == "" {
		return Config{}, fmt.Errorf("DATABASE_URL or POSTGRES_PASSWORD is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Gateway.StoreID == "" {
		return Config{}, fmt.Errorf("GATEWAY_STORE_ID is required")
	}
	if cfg.Gateway.StorePassword == "" {
		return Config{}, fmt.Errorf("GATEWAY_STORE_PASSWORD is required")
	}
	if cfg.Pricing.TaxRate.IsNegative() || cfg.Pricing.ShippingFee.IsNegative() {
		return Config{}, fmt.Errorf("TAX_RATE and SHIPPING_FEE must not be negative")
	}

	return cfg, nil
}

// PostgresDSNはDATABASE_URLが無いときの接続文字列
func (c Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

func getenv(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func boolDefault(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be bool: %w", key, err)
	}
	return b, nil
}

func durationDefault(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}

func decimalDefault(key string, def string) (decimal.Decimal, error) {
	v := getenv(key, def)
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be decimal: %w", key, err)
	}
	return d, nil
}
