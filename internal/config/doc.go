// Package config provides configuration management for cog-bulk.
//
// This package handles:
//   - Default configuration values
//   - Layered loading through viper: config file, COG_BULK_* environment
//     variables and bound command flags
//   - Saving settings back to a config file
//   - Conversion to the API client configuration
//
// # Loading
//
//	v := viper.New()
//	settings, err := config.Load(v, "")
//	if err != nil {
//	    // malformed file or invalid values
//	}
//
// With an empty path, config.yaml is searched for in ~/.cog-bulk and the
// working directory. Environment variables use the key in upper case, for
// example COG_BULK_THREADS=20.
//
// # Saving Settings
//
//	settings.Token = token
//	err := settings.Save(filepath.Join(config.DefaultConfigDir(), "config.yaml"))
package config
