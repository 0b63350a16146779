package constants

// Runtime environments.
const (
	EnvDevelop    = "develop"
	EnvProduction = "production"
)

// Pub/Sub providers for notification fan-out.
const (
	PubSubProviderLocal  = "local"
	PubSubProviderGoogle = "google"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Identity providers.
const (
	IdentityProviderFirebase = "firebase"
	IdentityProviderGoogle   = "google"
	IdentityProviderJWT      = "jwt"
)

// Headers read by the API.
const (
	HeaderTimezone = "X-Timezone"
)
