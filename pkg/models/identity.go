package models

import "errors"

// MaxAliasLength is the longest alias the broker-side registry accepts.
const MaxAliasLength = 16

// ErrMissingCredentials is returned when a client is constructed without a
// gear key or gear secret.
var ErrMissingCredentials = errors.New("gear key and gear secret are required")

// Identity is the immutable credential tuple a client is constructed with.
// It is set once and never mutated for the lifetime of the client.
type Identity struct {
	Key    string
	Secret string
	Alias  string
}

// NewIdentity validates the credential tuple. The alias, when present, is
// truncated to MaxAliasLength runes.
func NewIdentity(key, secret, alias string) (Identity, error) {
	if key == "" || secret == "" {
		return Identity{}, ErrMissingCredentials
	}
	return Identity{Key: key, Secret: secret, Alias: TruncateAlias(alias)}, nil
}

// TruncateAlias clips an alias to the registry's maximum length.
func TruncateAlias(alias string) string {
	runes := []rune(alias)
	if len(runes) > MaxAliasLength {
		return string(runes[:MaxAliasLength])
	}
	return alias
}
