// Package api provides the REST API server for the reconciliation engine.
//
// The API exposes the engine over HTTP:
//   - GET /api/v1/state reads the current state (?kernel_only=true bypasses NetworkManager)
//   - POST /api/v1/state applies a desired state document
//   - POST /api/v1/diff previews the change-set of a desired state document
//   - GET /health reports whether the engine can read the system
//   - GET /metrics exposes the engine metrics in Prometheus format
//
// # Response Format
//
// All successful responses wrap data in a "data" field:
//
//	{
//	  "data": { /* response payload */ }
//	}
//
// Error responses use the following format:
//
//	{
//	  "error": {
//	    "code": "InvalidArgument",
//	    "message": "Human-readable error message",
//	    "details": { "log": [ /* messages recorded by the call */ ] }
//	  }
//	}
//
// The code is the engine error kind; the HTTP status is derived from it.
package api
