package secrets

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

var (
	dbPasswordOnce    sync.Once
	dbPasswordRuntime string
	dbPasswordErr     error
)

// DBPassword resolves the database password referenced by param once per
// process and memoizes it. The reference is either the name of an
// environment variable or, with a "file://" prefix, a parameter file
// mounted by the host (the usual shape for injected secrets).
//
// An empty param falls back to DB_PASSWORD for local development.
func DBPassword(param string) (string, error) {
	dbPasswordOnce.Do(func() {
		dbPasswordRuntime, dbPasswordErr = resolve(param)
	})
	return dbPasswordRuntime, dbPasswordErr
}

func resolve(param string) (string, error) {
	if param == "" {
		return os.Getenv("DB_PASSWORD"), nil
	}

	if path, ok := strings.CutPrefix(param, "file://"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading password parameter %q: %w", param, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	value := os.Getenv(param)
	if value == "" {
		return "", fmt.Errorf("password parameter %q is not set", param)
	}
	return value, nil
}
