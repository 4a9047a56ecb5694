// Package config loads the monitor provider configuration.
//
// # Overview
//
// Configuration is a YAML file with four sections:
//
//	api:
//	  base_url: https://api.example.com
//	  timeout: 30s
//	  user_agent: monitor-provider
//	simulator:
//	  listen_address: 127.0.0.1:8600
//	  database_path: monitors.db
//	policies:
//	  paths: [./policies]
//	  watch: false
//	telemetry:
//	  logging:
//	    level: info
//	    format: console
//
// Missing values fall back to DefaultConfig. The environment variables
// MONITOR_API_URL, MONITOR_API_TIMEOUT and LOG_LEVEL override the file.
// The result is validated with go-playground/validator before use.
//
// # Usage Example
//
//	cfg, err := config.Load("monitor-provider.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := monitorapi.NewClient(cfg.API.ClientConfig())
package config
