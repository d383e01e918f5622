// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the SQLite databases gazeflow keeps on disk
// (the visit history and favicon cache) with one set of pragmas.
//
// It is a thin layer over zombiezen.com/go/sqlite/sqlitex.Pool.
// Callers Take a connection, run SQL through sqlitex, and Put it back:
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:      "/var/lib/gazeflow/history.db",
//	    Logger:    logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//	conn, err := pool.Take(ctx)
//	defer pool.Put(conn)
//
// Every connection runs in WAL mode with synchronous=NORMAL and a five
// second busy timeout. History is rebuilt from browsing anyway, so
// surviving a process crash without fsync-per-commit is enough.
package sqlitepool
