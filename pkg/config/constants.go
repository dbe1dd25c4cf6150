package config

// EnvPrefix scopes every environment variable the service reads.
const EnvPrefix = "OWLS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "OWLS_DB_DSN"
	EnvDBHost = "OWLS_DB_HOST"
	EnvDBUser = "OWLS_DB_USER"
	EnvDBName = "OWLS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
