// Package testdb holds helpers for tests that need a real database: locating
// the PostgreSQL test database and isolating each test in a transaction that
// is rolled back when it finishes.
//
// Tests against PostgreSQL are gated behind the integration build tag and
// skip themselves when no database URL is configured:
//
//	//go:build integration
//
//	func TestSomething(t *testing.T) {
//	    db := openDB(t, testdb.RequireDatabaseURL(t))
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        // ...
//	    })
//	}
package testdb
