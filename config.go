package taskward

import (
	"os"
	"strconv"
)

// DefaultTokenExpiration is the session lifetime in hours when the
// environment does not say otherwise.
const DefaultTokenExpiration = 24

// DefaultIssuer identifies tokens minted by this service.
const DefaultIssuer = "taskward"

// EnvConfig reads its values from the process environment. Load a dotenv file
// first if you keep secrets there.
type EnvConfig struct{}

var _ Config = EnvConfig{}

func (EnvConfig) GetSigningKey() string {
	return os.Getenv("JWT_SECRET")
}

func (EnvConfig) GetTokenExpiration() int {
	raw := os.Getenv("JWT_EXPIRATION_HOURS")
	if raw == "" {
		return DefaultTokenExpiration
	}

	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		return DefaultTokenExpiration
	}

	return hours
}

func (EnvConfig) GetIssuer() string {
	if issuer := os.Getenv("JWT_ISSUER"); issuer != "" {
		return issuer
	}
	return DefaultIssuer
}

func (EnvConfig) GetDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	return "file::memory:?cache=shared"
}

func (EnvConfig) GetListenAddr() string {
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		return addr
	}
	return ":3000"
}
