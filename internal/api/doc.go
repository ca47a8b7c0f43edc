// Package api implements the HTTP REST API for udevparse.
//
// This package provides:
//   - Parse endpoints for single identifier values
//   - Read access to the stored device reports
//   - An ingest endpoint accepting "udevadm info --export-db" dumps
//   - Middleware stack (request ID, logging, recovery, body size limit)
//
// # Routes
//
//	GET    /api/v1/health
//	POST   /api/v1/parse/{kind}        {"value": "..."}; kind is id-path, pci, dm-uuid or link
//	POST   /api/v1/ingest?source=NAME  export-db text body
//	GET    /api/v1/devices             ?bus=usb&errors=true
//	GET    /api/v1/devices/{sys_name}
//	DELETE /api/v1/devices/{sys_name}
//
// Errors use a single JSON shape:
//
//	{"status": 422, "code": "parse_error", "message": "...", "details": {...}}
//
// # Graceful Degradation
//
// The server operates without an ingester; the ingest route then answers
// 503 and every other route works.
package api
