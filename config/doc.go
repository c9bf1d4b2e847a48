// Package config loads and validates container configuration.
//
// Files are found by application name (config.yml, <name>.yml, .env.<name>,
// .env in the usual cmd/ and config/ locations) and read with Viper;
// environment variables override file values. Struct tags are checked with
// go-playground/validator.
//
// # Usage
//
//	cfg, err := config.LoadConfig("orders")
//	if err != nil {
//	    return err
//	}
//	c, err := di.NewFromConfig(cfg)
package config
