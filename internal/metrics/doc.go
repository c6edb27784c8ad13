// Package metrics holds the observability hooks for tutoragent.
//
// Components receive a Recorder and default to NoopRecorder, so metrics can be
// switched on by injecting a PrometheusRecorder without touching call sites.
// Monitor keeps the in-process per-operation timing table that backs the
// statistics reports and forwards every observation to a Recorder.
package metrics
