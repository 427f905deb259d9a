package config

type StoreConfig interface {
	GetStoreType() string
	GetStorePath() string
	GetStorePassphrase() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
}

// Store selects where the credential pair is persisted between runs.
type Store struct {
	Type          string `yaml:"type" env:"MOVIEZONE_STORE" env-default:"file"` // memory | file | redis
	Path          string `yaml:"path" env:"MOVIEZONE_STORE_PATH" env-default:"./data/credentials.json"`
	Passphrase    string `yaml:"passphrase" env:"MOVIEZONE_STORE_PASSPHRASE"`
	RedisAddr     string `yaml:"redis_addr" env:"MOVIEZONE_REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `yaml:"redis_password" env:"MOVIEZONE_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"MOVIEZONE_REDIS_DB" env-default:"0"`
	RedisPrefix   string `yaml:"redis_prefix" env:"MOVIEZONE_REDIS_PREFIX" env-default:"moviezone:"`
}

var _ StoreConfig = Store{}

func (s Store) GetStoreType() string {
	return s.Type
}

func (s Store) GetStorePath() string {
	return s.Path
}

// GetStorePassphrase returns the passphrase sealing the file store. Empty means plain JSON.
func (s Store) GetStorePassphrase() string {
	return s.Passphrase
}

func (s Store) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Store) GetRedisPassword() string {
	return s.RedisPassword
}

func (s Store) GetRedisDB() int {
	return s.RedisDB
}

func (s Store) GetRedisPrefix() string {
	return s.RedisPrefix
}
