package test

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"

	_ "github.com/jackc/pgx/v4/stdlib"
)

const (
	containerName     = "postgres"
	containerVersion  = "16-alpine"
	containerAutoKill = 120 // seconds

	port     = 5432
	user     = "entitlements"
	password = "entitlements"
	dbName   = "entitlements"
)

// StartPostgresDB runs a throwaway Postgres container and returns its
// connection url. The container removes itself once it expires.
func StartPostgresDB(pool *dockertest.Pool) (databaseUrl string, err error) {
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: containerName,
		Tag:        containerVersion,
		Env: []string{
			"POSTGRES_USER=" + user,
			"POSTGRES_PASSWORD=" + password,
			"POSTGRES_DB=" + dbName,
		},
		ExposedPorts: []string{fmt.Sprintf("%d/tcp", port)},
	}, func(config *docker.HostConfig) {
		// Enable AutoRemove and disable Restart
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return "", errors.Wrap(err, "could not start postgres container")
	}

	// Set a timeout to automatically kill the container
	resource.Expire(containerAutoKill)

	hostAndPort := resource.GetHostPort(fmt.Sprintf("%d/tcp", port))
	databaseUrl = fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", user, password, hostAndPort, dbName)

	return databaseUrl, nil
}

// WaitForConnection retries opening and pinging the database until it
// answers. When closeAfter is set the connection is closed before returning
// and a nil db is returned.
func WaitForConnection(databaseUrl string, closeAfter bool) (db *sql.DB, disconnect func(), err error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = 2 * time.Minute

	err = backoff.Retry(func() error {
		conn, err := sql.Open("pgx", databaseUrl)
		if err != nil {
			return err
		}
		if err := conn.Ping(); err != nil {
			_ = conn.Close()
			return err
		}
		db = conn
		return nil
	}, policy)
	if err != nil {
		return nil, nil, errors.Wrap(err, "database never became ready")
	}

	disconnect = func() {
		if err := db.Close(); err != nil {
			fmt.Printf("Could not close database: %s\n", err)
		}
	}

	if closeAfter {
		disconnect()
		return nil, func() {}, nil
	}
	return db, disconnect, nil
}
