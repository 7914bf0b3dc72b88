package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/pkg/config"
)

func TestDSNPerDriver(t *testing.T) {
	base := config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "academy", SSLMode: "disable", Path: "/tmp/a.db"}

	pg := base
	dsn, err := DSN(pg)
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=academy sslmode=disable", dsn)

	my := base
	my.Driver = "mysql"
	my.Port = 3306
	dsn, err = DSN(my)
	require.NoError(t, err)
	assert.Equal(t, "u:p@tcp(db:3306)/academy?parseTime=true&loc=UTC", dsn)

	lite := base
	lite.Driver = "sqlite"
	dsn, err = DSN(lite)
	require.NoError(t, err)
	assert.Contains(t, dsn, "file:/tmp/a.db")
}

func TestDriverNameRejectsUnknown(t *testing.T) {
	_, err := DriverName(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)

	name, err := DriverName(config.DatabaseConfig{Driver: "postgresql"})
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, name)
}
