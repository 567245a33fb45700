// Package contract provides HTTP transport layer contracts including
// RFC 7807 Problem Details for machine-readable error responses.
//
// This package implements the admin surface's error handling contracts,
// providing a standardized way to communicate errors to clients following
// RFC 7807 (Problem Details for HTTP APIs).
//
// # RFC 7807 Problem Details
//
// All error responses from the admin surface use the RFC 7807 format:
//
//	{
//	    "type": "https://cdenrich.example.com/problems/validation-error",
//	    "title": "Validation Error",
//	    "status": 400,
//	    "detail": "uri must be an absolute URL",
//	    "code": "VAL-002",
//	    "request_id": "req_abc123",
//	    "trace_id": "4bf92f3577b34da6a3ce929d0e0e4736"
//	}
//
// # Error Code Taxonomy
//
// Error codes follow the format {CATEGORY}-{NUMBER} with the following categories:
//
//	| Category | Code Prefix | HTTP Status | Description                        |
//	|----------|-------------|-------------|------------------------------------|
//	| VAL      | VAL-        | 400/413     | Validation (input errors)          |
//	| RATE     | RATE-       | 429         | Admin-surface rate limiting        |
//	| RES      | RES-        | 503/504     | Resilience (circuit breaker, etc.) |
//	| DB       | DB-         | 503         | Content-cache database             |
//	| SYS      | SYS-        | 500/503     | System (internal, unavailable)     |
//
// # Content-Type
//
// All error responses use Content-Type: application/problem+json as required
// by RFC 7807.
//
// # Usage
//
// Creating a problem response from an application error:
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    status, err := collect(r.Context())
//	    if err != nil {
//	        contract.WriteProblem(w, contract.FromError(r, err))
//	        return
//	    }
//	    // success response...
//	}
//
// Creating a problem with custom fields:
//
//	problem := contract.NewProblem(http.StatusBadRequest, "Invalid Input", "The request body is malformed")
//	problem.Code = contract.CodeValInvalidFormat
//	contract.WriteProblem(w, problem)
//
// # Thread Safety
//
// Problem instances are not safe for concurrent modification.
// Create a new Problem for each error response.
//
// # See Also
//
//   - RFC 7807: https://tools.ietf.org/html/rfc7807
package contract
