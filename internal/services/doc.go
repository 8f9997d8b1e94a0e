// Package services implements the business logic layer of fundscope. It
// sits between the HTTP handlers and the dataset, report and trend packages.
//
// # DashboardService
//
// DashboardService owns the dataset currently in service. Reads take a
// snapshot under a read lock, so a reload never changes a report half way
// through a build. Reports are cached by dataset fingerprint, layout and
// selection, and concurrent requests for the same uncached report share a
// single build.
//
//	svc, err := services.NewDashboardService(services.DashboardOptions{
//	    Source:  dataset.FileSource{Path: "startup_funding.csv"},
//	    Layouts: registry,
//	    Logger:  logger,
//	})
//	if err := svc.Load(ctx); err != nil { ... }
//	rep, err := svc.Dashboard(ctx, "classic", filter.Selection{Years: []int{2020}})
//
// Reload re-reads the source. When the fingerprint changed it swaps the
// dataset, drops cached reports and tells the Notifier.
//
// # HealthService
//
// HealthService answers liveness, readiness and version checks. The service
// is ready once a dataset is loaded.
package services
