package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Checkout     CheckoutConfig
	PubSub       PubSubConfig
	VNPay        VNPayConfig
	MoMo         MoMoConfig
	ZaloPay      ZaloPayConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"OWLS_APP_ENV" required:"true"`
	Port         string `envconfig:"OWLS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"OWLS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"OWLS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"OWLS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"OWLS_DB_DSN"`
	Driver string `envconfig:"OWLS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"OWLS_DB_HOST"`
	LegacyPort     int    `envconfig:"OWLS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"OWLS_DB_USER"`
	LegacyPassword string `envconfig:"OWLS_DB_PASSWORD"`
	LegacyName     string `envconfig:"OWLS_DB_NAME"`
	LegacySSLMode  string `envconfig:"OWLS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"OWLS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"OWLS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"OWLS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"OWLS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"OWLS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"OWLS_REDIS_ADDR"`
	Password     string        `envconfig:"OWLS_REDIS_PASSWORD"`
	DB           int           `envconfig:"OWLS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"OWLS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"OWLS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"OWLS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"OWLS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"OWLS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"OWLS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"OWLS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"OWLS_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"OWLS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"OWLS_AUTO_MIGRATE" default:"false"`
}

// CheckoutConfig carries the order-lifecycle knobs shared by the API and the
// cron worker. Durations are deliberate defaults: reconciliation leaves a
// grace window so webhooks arriving in-flight are not raced.
type CheckoutConfig struct {
	OrderNumberPrefix    string        `envconfig:"OWLS_ORDER_NUMBER_PREFIX" default:"OWL"`
	TaxRate              string        `envconfig:"OWLS_TAX_RATE" default:"0.08"`
	ShippingFlatFee      string        `envconfig:"OWLS_SHIPPING_FLAT_FEE" default:"30000"`
	PaymentCeiling       time.Duration `envconfig:"OWLS_PAYMENT_CEILING" default:"24h"`
	ReconcileGrace       time.Duration `envconfig:"OWLS_RECONCILE_GRACE" default:"15m"`
	UnpaidOrderTimeout   time.Duration `envconfig:"OWLS_UNPAID_ORDER_TIMEOUT" default:"30m"`
	CouponRefreshEvery   time.Duration `envconfig:"OWLS_COUPON_RULES_REFRESH" default:"1m"`
	MaxCartItemQuantity  int           `envconfig:"OWLS_MAX_CART_ITEM_QTY" default:"99"`
	SweepBatchSize       int           `envconfig:"OWLS_SWEEP_BATCH_SIZE" default:"200"`
	CronTickInterval     time.Duration `envconfig:"OWLS_CRON_TICK_INTERVAL" default:"1m"`
	IdempotencyTTL       time.Duration `envconfig:"OWLS_IDEMPOTENCY_TTL" default:"168h"`
	GatewayClientTimeout time.Duration `envconfig:"OWLS_GATEWAY_CLIENT_TIMEOUT" default:"10s"`
}

// TaxRateValue parses the configured tax rate.
func (c CheckoutConfig) TaxRateValue() (decimal.Decimal, error) {
	return decimal.NewFromString(c.TaxRate)
}

// ShippingFee parses the configured flat shipping fee (VND).
func (c CheckoutConfig) ShippingFee() (decimal.Decimal, error) {
	return decimal.NewFromString(c.ShippingFlatFee)
}

type PubSubConfig struct {
	ProjectID   string `envconfig:"OWLS_GCP_PROJECT_ID"`
	OrdersTopic string `envconfig:"OWLS_PUBSUB_ORDERS_TOPIC" default:"owls-order-events"`
}

type VNPayConfig struct {
	TmnCode    string `envconfig:"OWLS_VNPAY_TMN_CODE"`
	HashSecret string `envconfig:"OWLS_VNPAY_HASH_SECRET"`
	PaymentURL string `envconfig:"OWLS_VNPAY_PAYMENT_URL" default:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"`
	APIURL     string `envconfig:"OWLS_VNPAY_API_URL" default:"https://sandbox.vnpayment.vn/merchant_webapi/api/transaction"`
	ReturnURL  string `envconfig:"OWLS_VNPAY_RETURN_URL"`
}

type MoMoConfig struct {
	PartnerCode string `envconfig:"OWLS_MOMO_PARTNER_CODE"`
	AccessKey   string `envconfig:"OWLS_MOMO_ACCESS_KEY"`
	SecretKey   string `envconfig:"OWLS_MOMO_SECRET_KEY"`
	Endpoint    string `envconfig:"OWLS_MOMO_ENDPOINT" default:"https://test-payment.momo.vn"`
	ReturnURL   string `envconfig:"OWLS_MOMO_RETURN_URL"`
	NotifyURL   string `envconfig:"OWLS_MOMO_NOTIFY_URL"`
}

type ZaloPayConfig struct {
	AppID       string `envconfig:"OWLS_ZALOPAY_APP_ID"`
	Key1        string `envconfig:"OWLS_ZALOPAY_KEY1"`
	Key2        string `envconfig:"OWLS_ZALOPAY_KEY2"`
	Endpoint    string `envconfig:"OWLS_ZALOPAY_ENDPOINT" default:"https://sb-openapi.zalopay.vn"`
	CallbackURL string `envconfig:"OWLS_ZALOPAY_CALLBACK_URL"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
