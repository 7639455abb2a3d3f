// Package config loads the broadcaster configuration.
//
// Values are layered in a fixed order: compiled-in baseline, optional YAML
// file, then ARGUS_* environment overrides. The merged result is validated
// before it is handed to the rest of the process, and is never mutated
// afterwards.
package config
