// Package app wires the fundscope server together and manages its
// lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, config.yaml and FUNDSCOPE_* variables
//	2. Initialize logging and OpenTelemetry
//	3. Resolve the dataset source (local path or s3:// URI)
//	4. Build the layout registry, report builder and cache
//	5. Create the websocket hub, dashboard and health services
//	6. Set up HTTP handlers and middleware
//	7. Load the dataset, start background work and the HTTP server
//
// A failed first load does not stop the server. /api/health/ready answers
// 503 until a reload succeeds, either through POST /api/dataset/reload or
// the periodic reloader.
//
// # Graceful Shutdown
//
// SIGINT and SIGTERM drain in-flight requests, stop the reloader and the
// runtime collector, close websocket clients and flush metrics.
package app
