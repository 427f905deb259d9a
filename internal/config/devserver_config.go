package config

// DevServerConfig holds the settings of the development backend that are not
// token settings.
type DevServerConfig interface {
	GetRevocationRedisAddr() string
	GetRotateRefreshTokens() bool
	GetSeedCatalog() bool
	GetDemoPassword() string
}

type DevServer struct {
	RevocationRedisAddr string `yaml:"revocation_redis_addr" env:"DEVSERVER_REVOCATION_REDIS_ADDR"` // empty keeps revocations in memory
	RotateRefresh       bool   `yaml:"rotate_refresh" env:"DEVSERVER_ROTATE_REFRESH" env-default:"false"`
	SeedCatalog         bool   `yaml:"seed_catalog" env:"DEVSERVER_SEED_CATALOG" env-default:"true"`
	DemoPassword        string `yaml:"demo_password" env:"DEVSERVER_DEMO_PASSWORD" env-default:"demo123"`
}

var _ DevServerConfig = DevServer{}

func (d DevServer) GetRevocationRedisAddr() string {
	return d.RevocationRedisAddr
}

func (d DevServer) GetRotateRefreshTokens() bool {
	return d.RotateRefresh
}

func (d DevServer) GetSeedCatalog() bool {
	return d.SeedCatalog
}

func (d DevServer) GetDemoPassword() string {
	return d.DemoPassword
}
