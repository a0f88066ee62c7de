/*
Package config loads the cluster-wide configuration options: workers,
master, shutdown_with_workers, shutdown_with_master, tags, deploy and
telemetry.

A Viper instance reads an optional YAML file, environment variables take
precedence over it, and the result is unmarshalled into a plain struct
via mapstructure tags. There is no service-name file discovery: Skitter's
config always comes from explicit CLI flags, SKITTER_* environment
variables, an optional --config file and an optional --worker-file.
*/
package config
