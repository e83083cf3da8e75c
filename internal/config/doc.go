// Package config loads the server settings: log level, corner backend,
// intensity extraction rule, detection cache size and the detector
// parameters used when a tool call omits them.
//
// Settings are layered: DefaultConfig, then an optional JSON file, then
// PIXEL_PROFILE_* environment variables, then Validate.
package config
