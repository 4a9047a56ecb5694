// Package stores persists monitors and request audit entries for the
// control-plane simulator. The SQLite implementation runs on the pure-Go
// modernc.org/sqlite driver, enables WAL mode for file databases and applies
// its schema with golang-migrate from embedded SQL files.
package stores
