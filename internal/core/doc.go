// Package core is the file service behind the spreadsheet tools.
//
// It has no transport dependencies and can be driven by the HTTP layer, a
// CLI or tests alike.
//
// # Versions
//
// Every upload and every transformation produces a new immutable version in
// the in-memory store, addressed by a generated file id. Operations never
// modify their inputs: the caller gets back new ids and can keep working
// from any earlier version.
//
//	res, _ := svc.Upload(ctx, "sales.xlsx", file)
//	sorted, _ := svc.Sort(ctx, core.SortRequest{FileID: res.FileID, Column: "amount", Order: "desc"})
//	export, _ := svc.Download(ctx, sorted.FileID, "csv")
//
// # Load control
//
// Uploads, downloads, previews and transformations each hold a slot of the
// [OperationLimiter] while they run. When no slot frees up within the wait
// limit the call fails with [ErrTooManyOperations].
//
// # Retention
//
// [Service.StartRetentionScheduler] drops versions older than the file
// retention period and trims the audit log.
//
// # Audit
//
// Each successful operation writes an [AuditEntry] to the configured
// [AuditSink]: an in-memory ring by default, or PostgreSQL when a database
// is configured.
//
// # Errors
//
// Engine failures are *dataset.Error values. [MapError] turns any error into
// a [UserMessage] with a support code (NF001, VAL001, FML001, ...).
package core
