package models

import "strings"

// RequestToken is the short-lived credential that bootstraps the
// access-token exchange. It is superseded once an access token is issued.
type RequestToken struct {
	Token    string `json:"token"`
	Secret   string `json:"secret"`
	Verifier string `json:"verifier"`
}

// AccessToken is the long-lived delegated credential authorizing a broker
// session. Endpoint may be empty, which signals a pending endpoint
// discovery step.
type AccessToken struct {
	Token      string `json:"token"`
	Secret     string `json:"secret"`
	AppKey     string `json:"appkey"`
	Endpoint   string `json:"endpoint"`
	RevokeCode string `json:"revokecode"`
}

// BrokerAddress returns the host:port part of the resolved endpoint,
// tolerating a scheme prefix and a trailing slash in the server response.
func (t *AccessToken) BrokerAddress() string {
	ep := t.Endpoint
	if i := strings.Index(ep, "//"); i >= 0 {
		ep = ep[i+2:]
	}
	return strings.TrimSuffix(ep, "/")
}
