// Package dataset loads and cleans startup funding records.
//
// A dataset is read from a Source (a local file or an S3 object), decoded by
// file extension (.csv, .csv.gz, .csv.zst, .csv.s2 or .xlsx) and cleaned row
// by row:
//
//   - Column headers are matched loosely, so "Company Name", "company_name"
//     and a BOM-prefixed "Company Name" all resolve to the company column.
//   - Amount text has "$" and "," stripped and is parsed as a decimal. Rows
//     whose amount cannot be parsed are kept with AmountValid set to false.
//   - Rows whose year cannot be parsed are dropped and counted in Skipped.
//
// The resulting Dataset is immutable. Reloading produces a new value with a
// new Fingerprint.
package dataset
