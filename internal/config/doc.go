// Package config loads FundScope configuration.
//
// # Configuration Sources
//
// Values are resolved in this order, later sources winning:
//
//	1. Default()
//	2. A YAML file: $FUNDSCOPE_CONFIG, config.yaml or configs/config.yaml
//	3. Environment variables
//
// # Environment Variables
//
// Variables are named FUNDSCOPE_<SECTION>_<FIELD>:
//
//	FUNDSCOPE_SERVER_PORT=8080
//	FUNDSCOPE_DATASET_SOURCE=s3://funding/startups_dset.csv
//	FUNDSCOPE_DATASET_RELOAD_INTERVAL=5m
//	FUNDSCOPE_S3_ENDPOINT=http://localhost:9000
//	FUNDSCOPE_DASHBOARD_DEFAULT_LAYOUT=extended
//	FUNDSCOPE_LOGGING_LEVEL=debug
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
