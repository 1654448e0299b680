package microgear

import "github.com/netpie/microgear-go/pkg/broker"

// Config carries the construction parameters for a Client. Key and Secret
// are mandatory; everything else has a working default.
type Config struct {
	Key    string `yaml:"key"`
	Secret string `yaml:"secret"`
	// Alias names this client in the broker-side registry. Longer values
	// are truncated to the registry limit.
	Alias string `yaml:"alias"`
	// Scope is forwarded to the authorization server on the request-token
	// exchange.
	Scope string `yaml:"scope"`

	// CachePath overrides the credential cache location. By default the
	// cache lives in the working directory, named after the gear key.
	// Two clients for the same identity must not share one path.
	CachePath string `yaml:"cache_path"`
	// AuthAddress overrides the authorization server host:port.
	AuthAddress string `yaml:"auth_address"`
	// Secure selects TLS for the authorization exchange and the broker
	// session.
	Secure bool `yaml:"secure"`

	// Will registers a last-will message. Its topic is application
	// relative, namespaced at connect time like any published topic.
	Will *broker.Will `yaml:"will"`
}
