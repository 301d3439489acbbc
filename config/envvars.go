package config

import (
	"os"
	"strconv"
)

// Environment variables understood by the record store. Values from the
// environment override yaml configuration defaults.
const (
	envDBDriver       = "CRS_DB_DRIVER"
	envDBUsername     = "CRS_DB_USERNAME"
	envDBPassword     = "CRS_DB_PASSWORD"
	envDBProtocol     = "CRS_DB_PROTOCOL"
	envDBHost         = "CRS_DB_HOST"
	envDBPort         = "CRS_DB_PORT"
	envDBSchema       = "CRS_DB_SCHEMA"
	envDBParams       = "CRS_DB_CONN_PARAMS"
	envDBMaxIdleConns = "CRS_DB_MAXIDLECONNS"
	envDBMaxOpenConns = "CRS_DB_MAXOPENCONNS"
)

func getEnvOrDefault(name, defaultValue string) string {
	envVal := os.Getenv(name)
	if len(envVal) == 0 {
		return defaultValue
	}
	return envVal
}

func getEnvOrDefaultInt(name string, defaultValue int64) int64 {
	envVal := os.Getenv(name)
	if len(envVal) == 0 {
		return defaultValue
	}
	i, err := strconv.ParseInt(envVal, 10, 64)
	if err != nil {
		return defaultValue
	}
	return i
}
