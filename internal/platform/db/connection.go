package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/sotec-iot/device-communication/internal/config"

	_ "github.com/lib/pq"
)

func InitializeDatabaseConnection(cfg *config.Config) (*sql.DB, error) {
	if cfg.DeviceDatabaseImpl != "postgres" {
		return nil, errors.New("Invalid SQL database impl requested: " + cfg.DeviceDatabaseImpl)
	}

	psqlConnectionInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s TimeZone=UTC",
		cfg.DeviceDatabaseHost,
		cfg.DeviceDatabasePort,
		cfg.DeviceDatabaseUser,
		cfg.DeviceDatabasePassword,
		cfg.DeviceDatabaseName)

	sslSettings, err := buildPostgresSslConfigString(cfg)
	if err != nil {
		return nil, err
	}

	psqlConnectionInfo += " " + sslSettings

	return sql.Open("postgres", psqlConnectionInfo)
}

func buildPostgresSslConfigString(cfg *config.Config) (string, error) {
	if cfg.DeviceDatabaseSslMode == "disable" {
		return "sslmode=disable", nil
	} else if cfg.DeviceDatabaseSslMode == "verify-full" {
		return "sslmode=verify-full sslrootcert=" + cfg.DeviceDatabaseSslRootCert, nil
	} else {
		return "", errors.New("Invalid SSL configuration for database connection: " + cfg.DeviceDatabaseSslMode)
	}
}
