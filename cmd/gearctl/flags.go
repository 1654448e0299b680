package main

import "github.com/urfave/cli/v2"

var FlagConfig = &cli.StringFlag{
	Name:     "config",
	Usage:    "path to a YAML configuration file",
	EnvVars:  []string{"GEARCTL_CONFIG"},
	Required: false,
}

var FlagLogLevel = &cli.StringFlag{
	Name:     "log-level",
	EnvVars:  []string{"LOG_LEVEL"},
	Value:    "info",
	Required: false,
}

var FlagLogWriter = &cli.StringFlag{
	Name:     "log-writer",
	Usage:    "one of: [console, json]",
	EnvVars:  []string{"LOG_WRITER"},
	Value:    "console",
	Required: false,
}

var FlagKey = &cli.StringFlag{
	Name:     "key",
	Usage:    "gear key issued for this device or application",
	EnvVars:  []string{"GEAR_KEY"},
	Required: false,
}

var FlagSecret = &cli.StringFlag{
	Name:     "secret",
	Usage:    "gear secret paired with the key",
	EnvVars:  []string{"GEAR_SECRET"},
	Required: false,
}

var FlagAlias = &cli.StringFlag{
	Name:     "alias",
	Usage:    "name to register in the broker-side alias registry",
	EnvVars:  []string{"GEAR_ALIAS"},
	Required: false,
}

var FlagAppID = &cli.StringFlag{
	Name:     "appid",
	Usage:    "application id scoping the topic namespace",
	EnvVars:  []string{"GEAR_APPID"},
	Required: false,
}

var FlagScope = &cli.StringFlag{
	Name:     "scope",
	EnvVars:  []string{"GEAR_SCOPE"},
	Required: false,
}

var FlagSecure = &cli.BoolFlag{
	Name:     "secure",
	Usage:    "use TLS for the authorization exchange and the broker session",
	EnvVars:  []string{"GEAR_SECURE"},
	Required: false,
}

var FlagCachePath = &cli.StringFlag{
	Name:     "cache-path",
	Usage:    "override the credential cache file location",
	EnvVars:  []string{"GEAR_CACHE_PATH"},
	Required: false,
}

var FlagAuthAddress = &cli.StringFlag{
	Name:     "auth-address",
	Usage:    "override the authorization server host:port",
	EnvVars:  []string{"GEAR_AUTH_ADDRESS"},
	Required: false,
}
