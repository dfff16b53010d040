package store

// Backend names accepted in the vault configuration.
const (
	BackendKeyring  = "keyring"
	BackendSQLite   = "sqlite"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendS3       = "s3"
)

// StoreConfig configures one durable store (the key store or the blob store).
type StoreConfig struct {
	// Backend is one of the Backend* constants.
	Backend string

	// Path is the database file (sqlite) or directory (file).
	Path string

	// DSN is the Postgres connection string.
	DSN string

	// Addr, Password and DB address a Redis server.
	Addr     string
	Password string
	DB       int

	// Prefix namespaces Redis keys. Service names the OS keychain service.
	Prefix  string
	Service string

	// Bucket, Region, Endpoint and the access key pair address S3-compatible
	// object storage. Prefix namespaces object keys there too.
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}
