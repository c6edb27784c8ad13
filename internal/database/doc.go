// Package database persists lesson content, learner progress, study sessions
// and settings in SQLite.
//
// The schema is versioned. Open creates a fresh schema or migrates an older
// one forward, one version at a time, inside a single transaction. List and
// map fields are stored as JSON text; timestamps as RFC 3339 strings.
package database
