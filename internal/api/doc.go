// Package api serves a read-only JSON view of the catalog over HTTP.
//
// Endpoints:
//
//	GET /api/videos?q=&limit=  newest-first listing of file_id, title and thumbnail
//	GET /api/health            store reachability
//	GET /metrics               Prometheus exposition of the request counters
//
// Nothing here writes to the catalog.
package api
