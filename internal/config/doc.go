// Package config loads the optional HCL configuration file of scriptdeck and
// resolves it, together with built-in defaults, into a typed Config.
//
// The file may reference environment variables through the `env` object, for
// example `remote_url = env.SCRIPTDECK_REMOTE`.
package config
