//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"

	postgrestest "github.com/code-payments/flipchat-entitlements/database/postgres/test"
	iaptests "github.com/code-payments/flipchat-entitlements/iap/tests"
	"github.com/code-payments/flipchat-entitlements/keyvalue/tests"
)

var (
	testPool    *dockertest.Pool
	databaseUrl string
)

func TestMain(m *testing.M) {
	log := logrus.StandardLogger()

	var err error
	testPool, err = dockertest.NewPool("")
	if err != nil {
		log.WithError(err).Error("Error creating docker pool")
		os.Exit(1)
	}

	// Start a postgres container
	databaseUrl, err = postgrestest.StartPostgresDB(testPool)
	if err != nil {
		log.WithError(err).Error("Error starting postgres image")
		os.Exit(1)
	}

	// Wait for the database to be ready and apply the schema
	db, disconnect, err := postgrestest.WaitForConnection(databaseUrl, false)
	if err != nil {
		log.WithError(err).Error("Error waiting for connection")
		os.Exit(1)
	}

	err = CreateSchema(context.Background(), db)
	disconnect()
	if err != nil {
		log.WithError(err).Error("Error creating schema")
		os.Exit(1)
	}

	// Run tests
	code := m.Run()
	os.Exit(code)
}

func TestKeyValue_PostgresStore(t *testing.T) {
	db, disconnect, err := postgrestest.WaitForConnection(databaseUrl, false)
	if err != nil {
		t.Fatalf("Error connecting to database: %v", err)
	}
	defer disconnect()

	testStore := NewInPostgres(db)
	teardown := func() {
		testStore.(*pgStore).reset()
	}
	tests.RunStoreTests(t, testStore, teardown)
}

func TestIAP_PostgresManager(t *testing.T) {
	db, disconnect, err := postgrestest.WaitForConnection(databaseUrl, false)
	if err != nil {
		t.Fatalf("Error connecting to database: %v", err)
	}
	defer disconnect()

	testStore := NewInPostgres(db)
	teardown := func() {
		testStore.(*pgStore).reset()
	}
	iaptests.RunManagerTests(t, testStore, teardown)
}
