package postgres

import (
	"time"
)

const (
	boolTable = "iap_bool_values"
	intTable  = "iap_int_values"
)

// boolModel maps to the iap_bool_values table
type boolModel struct {
	Key       string    `db:"key"`
	Value     bool      `db:"value"`
	CreatedAt time.Time `db:"createdAt"`
	UpdatedAt time.Time `db:"updatedAt"`
}

// intModel maps to the iap_int_values table
type intModel struct {
	Key       string    `db:"key"`
	Value     int64     `db:"value"`
	CreatedAt time.Time `db:"createdAt"`
	UpdatedAt time.Time `db:"updatedAt"`
}

const schema = `
CREATE TABLE IF NOT EXISTS ` + boolTable + ` (
	"key" TEXT PRIMARY KEY,
	"value" BOOLEAN NOT NULL,
	"createdAt" TIMESTAMP WITH TIME ZONE NOT NULL,
	"updatedAt" TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE TABLE IF NOT EXISTS ` + intTable + ` (
	"key" TEXT PRIMARY KEY,
	"value" BIGINT NOT NULL CHECK ("value" >= 0),
	"createdAt" TIMESTAMP WITH TIME ZONE NOT NULL,
	"updatedAt" TIMESTAMP WITH TIME ZONE NOT NULL
);
`
