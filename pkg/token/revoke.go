package token

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strings"
)

// RevokeCode derives the code the authorization server expects alongside a
// revocation request: the base64 HMAC-SHA1 of the token keyed by
// "{tokenSecret}&{gearSecret}", with "/" mapped to "_" so the code is safe
// inside a URL path segment.
func RevokeCode(token, tokenSecret, gearSecret string) string {
	mac := hmac.New(sha1.New, []byte(tokenSecret+"&"+gearSecret))
	mac.Write([]byte(token))
	code := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return strings.ReplaceAll(code, "/", "_")
}
