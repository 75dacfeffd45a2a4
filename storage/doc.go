// Package storage is the persistence boundary used by the orchestration modules
// for cookies and tokens.
//
// A Storage holds a single value of type T. Three backends are provided:
//   - Memory: process-local, the default for every module
//   - SQLite: one row per key in a shared table, via modernc.org/sqlite
//   - Redis: one key per store, via go-redis
//
// The SQLite and Redis backends encode values as JSON.
//
//	db, _ := storage.OpenSQLite("ping.db")
//	tokens, _ := storage.NewSQLite[oidc.Token](db, "tokens")
//	_ = tokens.Save(ctx, token)
package storage
