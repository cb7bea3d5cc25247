// Package importing implements the beneficiary import pipeline: a parsed
// spreadsheet is resolved against existing beneficiaries by identity
// fingerprint, then new beneficiaries and their enrollment links to one
// formation are written in a single transaction.
//
// The service layer depends on the Repository interface defined in
// repository.go. It never imports net/http or database/sql directly.
package importing
