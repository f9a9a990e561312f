// Package config loads, validates and normalizes the slate configuration.
//
// Configuration lives in a TOML file (default ~/.config/slate/config.toml,
// with a slate.toml in the working directory as a development fallback). All
// path values are tilde-expanded and made absolute during Load so the rest of
// the codebase never deals with relative or unexpanded paths.
package config
