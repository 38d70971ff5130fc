// Package cli provides the geoqc command-line interface.
//
// # Commands
//
// check: validate a dataset, a directory workspace or an s3:// location once
//
//	geoqc check parcels.geojson
//	geoqc check ./survey --format json --fail-on warning
//
// rules: list the built-in rules and whether the rule configuration enables them
//
//	geoqc rules ./survey
//
// watch: validate again whenever files under the path change
//
//	geoqc watch ./survey --debounce 2s --metrics-addr :9102
//
// schedule: validate on a cron schedule
//
//	geoqc schedule ./survey --cron "0 6 * * *" --run-now
//
// history: list stored runs and print their reports
//
//	geoqc history --store history.db
//	geoqc history show <run-id> --store history.db
//
// init: write a default geoqc.yaml
//
//	geoqc init ./survey
//
// # Exit status
//
// 0 when the run completed and no finding reached the --fail-on severity,
// 2 when one did, 1 on any error.
//
// # Configuration
//
// Flags override the GEOQC_* environment variables documented in pkg/config.
// Rule selection and thresholds come from --rules or from a geoqc.yaml next
// to the input.
package cli
