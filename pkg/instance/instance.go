package instance

import "os"

// EnvInstanceID overrides the process identity used in lock ownership and logs.
const EnvInstanceID = "INFLUENCEHUB_INSTANCE_ID"

// ID returns the configured instance identifier, then the hostname, then "local".
func ID() string {
	if id := os.Getenv(EnvInstanceID); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
