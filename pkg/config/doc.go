// Package config loads geoqc process configuration from the environment.
//
// Rule configuration (which checks run, required fields, domains, bounds)
// lives in a YAML file handled by package quality. This package only covers
// how the process itself runs.
//
// # Loading
//
// Load reads .env and .env.local when they exist, then parses GEOQC_*
// variables into Config and validates it:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	logger := cfg.NewLogger()
//
// Variables already present in the environment are not overridden by the
// env files.
//
// # Environment variables
//
//	GEOQC_LOG_LEVEL          debug, info, warn or error (default info)
//	GEOQC_LOG_FORMAT         text or json (default text)
//	GEOQC_WORKERS            workspace members evaluated in parallel (default 4)
//	GEOQC_RULES_FILE         rule configuration file
//	GEOQC_STORE_DSN          report history database, postgres:// or sqlite path
//	GEOQC_METRICS_FILE       Prometheus textfile written after each run
//	GEOQC_METRICS_ADDR       listen address for /metrics in watch and schedule
//	GEOQC_CACHE_SIZE         finding cache entries (default 256, 0 disables)
//	GEOQC_CACHE_TTL          finding cache entry lifetime (default 1h)
//	GEOQC_S3_REGION          region for s3:// datasets
//	GEOQC_S3_ENDPOINT        custom S3 endpoint, e.g. MinIO
//	GEOQC_S3_USE_PATH_STYLE  path-style S3 addressing (default false)
//	GEOQC_S3_ACCESS_KEY_ID      static S3 access key, default AWS chain when unset
//	GEOQC_S3_SECRET_ACCESS_KEY  static S3 secret, set together with the key ID
//	GEOQC_OTEL_ENABLED       export traces and metrics over OTLP (default false)
//	GEOQC_OTEL_ENDPOINT      OTLP gRPC endpoint (default localhost:4317)
//	GEOQC_OTEL_SERVICE_NAME  service name (default geoqc)
//	GEOQC_OTEL_INSECURE      plaintext OTLP connection (default true)
package config
