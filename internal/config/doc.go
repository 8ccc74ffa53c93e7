// Package config loads the server and generator settings from defaults, an
// optional config.yaml, a .env file and BESPOKE_* environment variables, and
// validates them before any component is built.
package config
