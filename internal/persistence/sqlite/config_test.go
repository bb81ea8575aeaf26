package sqlite

import (
	"sync"
	"testing"
)

func TestOpenMemorySharesSchemaAcrossQueries(t *testing.T) {
	db, err := Open(":memory:", DefaultConfig())
	if err != nil {
		t.Fatalf("open memory database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY);"); err != nil {
		t.Fatalf("create table: %v", err)
	}

	// Concurrent queries make the pool open extra physical connections if
	// it is allowed to; each one would carry its own empty in-memory
	// database and miss the table.
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var n int
			if err := db.QueryRow("SELECT count(*) FROM t;").Scan(&n); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("query on pooled connection: %v", err)
	}
}
