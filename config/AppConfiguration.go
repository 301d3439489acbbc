package config

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	// database drivers registered for sqlx.Open
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// AppConfiguration is the holder for all configuration of the record store.
type AppConfiguration struct {
	DatabaseConnection DatabaseConfiguration `yaml:"database"`
}

// DatabaseConfiguration is a structure that defines the database connection.
type DatabaseConfiguration struct {
	// Driver specifies the database driver: "mysql" or "sqlite3".
	Driver string `yaml:"driver"`
	// Username is the database username.
	Username string `yaml:"username"`
	// Password is the database password.
	Password string `yaml:"password"`
	// Protocol specifies the network protocol. Only "tcp" is supported.
	Protocol string `yaml:"protocol"`
	// Host is the database hostname.
	Host string `yaml:"host"`
	// Port is the database port. Commonly 3306 for MySQL.
	Port string `yaml:"port"`
	// Schema is the database name to connect to. The record store default
	// is "recorddb". For sqlite3 this is the database file path.
	Schema string `yaml:"schema"`
	// Params are custom connection params injected into the DSN.
	Params string `yaml:"conn_params"`
	// MaxIdleConns caps idle pooled connections. Zero uses the default.
	MaxIdleConns int `yaml:"max_idle_conns"`
	// MaxOpenConns caps open connections. Zero uses the default. The
	// sqlite3 driver is always capped at one to serialize writers.
	MaxOpenConns int `yaml:"max_open_conns"`
}

const defaultDBDriver = "mysql"

// NewDatabaseConfigFromEnv produces a DatabaseConfiguration from environment
// variables, applying defaults suitable for a containerized test database.
func NewDatabaseConfigFromEnv() DatabaseConfiguration {
	var conf DatabaseConfiguration
	conf.Driver = getEnvOrDefault(envDBDriver, defaultDBDriver)
	conf.Username = getEnvOrDefault(envDBUsername, "dbuser")
	conf.Password = getEnvOrDefault(envDBPassword, "dbPassword")
	conf.Protocol = getEnvOrDefault(envDBProtocol, "tcp")
	conf.Host = getEnvOrDefault(envDBHost, "127.0.0.1")
	conf.Port = getEnvOrDefault(envDBPort, "3306")
	conf.Schema = getEnvOrDefault(envDBSchema, "recorddb")
	conf.Params = getEnvOrDefault(envDBParams, "")
	return conf
}

// GetDatabaseHandle initializes a database connection from the configuration.
func (r *DatabaseConfiguration) GetDatabaseHandle() (*sqlx.DB, error) {
	db, err := sqlx.Open(r.driverName(), r.buildDSN())
	if err != nil {
		return nil, err
	}
	maxIdle := r.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = int(getEnvOrDefaultInt(envDBMaxIdleConns, 10))
	}
	maxOpen := r.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = int(getEnvOrDefaultInt(envDBMaxOpenConns, 10))
	}
	if r.driverName() == "sqlite3" {
		// a single connection serializes writers and keeps one consistent
		// snapshot for in-memory databases
		maxIdle, maxOpen = 1, 1
	}
	db.SetMaxIdleConns(maxIdle)
	db.SetMaxOpenConns(maxOpen)
	return db, nil
}

func (r *DatabaseConfiguration) driverName() string {
	if r.Driver == "" {
		return defaultDBDriver
	}
	return r.Driver
}

func (r *DatabaseConfiguration) buildDSN() string {
	switch r.driverName() {
	case "sqlite3":
		params := r.Params
		if params == "" {
			params = "_loc=UTC"
		}
		return fmt.Sprintf("file:%s?%s", r.Schema, params)
	default:
		params := r.Params
		if params == "" {
			// parseTime for DATETIME scanning, multiStatements for the
			// migration runner
			params = "parseTime=true&loc=UTC&multiStatements=true"
		}
		return fmt.Sprintf("%s:%s@%s(%s:%s)/%s?%s",
			r.Username, r.Password, r.Protocol, r.Host, r.Port, r.Schema, params)
	}
}
