// Package httpapi exposes the marketauth engine over HTTP.
//
// Every account kind gets the same route set under /v1/{kind}. Unknown
// kinds answer 404 before any engine call. Login failures for unknown
// emails and wrong passwords share one 401 body.
package httpapi
