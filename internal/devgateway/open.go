package devgateway

import (
	"context"
	"fmt"
)

// Drivers lists the accepted storage driver names.
var Drivers = []string{"memory", "file", "postgres", "mysql"}

// Open returns the Store for driver. dsn is the file path for "file" and
// the connection string for "postgres" and "mysql"; "memory" ignores it.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		fs, err := OpenFileStore(dsn)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case "postgres", "mysql":
		if dsn == "" {
			return nil, fmt.Errorf("driver %s needs a dsn", driver)
		}
		db, err := OpenSQLStore(ctx, driver, dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return nil, fmt.Errorf("unknown driver %q (want one of %v)", driver, Drivers)
}
