// Package site compiles declarative per-site rules into immutable profiles.
//
// A Profile carries the domain restriction, the ordered gallery URL
// patterns, the ad element selectors and the script and resource rules of
// one site. Construction validates everything up front and fails with a
// *ConfigError, so a broken site never reaches the interception engine.
//
// A Registry is an explicit name to profile mapping built at startup from
// the rules file. There is no package-level registry.
package site
