// Package http implements the HTTP handlers of the fundscope API. Handlers
// stay thin: they parse and validate the request, call a service and render
// the result.
//
// # Routes
//
// Each handler exposes Routes() and is mounted by the application router
// under /api:
//
//	/dashboard                  full report for ?layout= and the filters
//	/dashboard/options          filter choices and amount bounds
//	/dashboard/layouts          registered layouts
//	/dashboard/metrics          summary metrics of the primary selection
//	/dashboard/sections/{id}    one section
//	/dashboard/predictions      predictions table
//	/dashboard/export/{file}    download, file is <section>.<csv|xlsx|json>
//	/trend/estimate             POST observations, get fitted lines
//	/dataset                    dataset status
//	/dataset/reload             POST forces a reload
//
// Filters are query parameters that may be repeated or comma separated:
//
//	?year=2019,2020&round=Seed&location=Mumbai&industry=EV&min_amount=1e6
//
// # Responses
//
// Success responses use the envelope {"status":"success","data":...}.
// Errors are RFC 7807 problem documents produced by errors.ErrorHandler.
package http
