// Package domain defines the core business types for the formation
// beneficiary import.
//
// Types in this package are pure value objects with no behavior, no database
// dependencies, and no HTTP concerns. They are the shared language between
// the spreadsheet parser, the import service, repositories, and handlers.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Pure functions on the types are allowed (fingerprinting, normalization)
//   - Constants and enums belong here
package domain
