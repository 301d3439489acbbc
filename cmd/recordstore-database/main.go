package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli"

	"github.com/clinvault/recordstore/config"
	"github.com/clinvault/recordstore/dao"
	"github.com/clinvault/recordstore/schema"
)

// defaultConfig holds values suitable for a containerized test db.
var defaultConfig = config.AppConfiguration{
	DatabaseConnection: config.DatabaseConfiguration{
		Driver:   "mysql",
		Host:     "127.0.0.1",
		Port:     "3306",
		Schema:   "recorddb",
		Protocol: "tcp",
		Username: "dbuser",
		Password: "dbPassword",
	},
}

func main() {

	app := cli.NewApp()
	app.Name = "recordstore-database"
	app.Usage = "record store database manager for setup and migrations"

	// Declare flags common to commands, and pass them in Flags below.
	confFlag := cli.StringFlag{
		Name:  "conf",
		Usage: "Path to yaml config",
	}

	app.Commands = []cli.Command{
		{
			Name:  "migrate",
			Usage: "Apply pending schema migrations to the configured database",
			Flags: []cli.Flag{confFlag},
			Action: func(clictx *cli.Context) error {
				fmt.Println("Applying migrations.")
				if err := migrateUp(clictx); err != nil {
					log.Fatal(err)
				}
				return nil
			},
		},
		{
			Name:  "status",
			Usage: "Print status for configured database",
			Flags: []cli.Flag{confFlag},
			Action: func(clictx *cli.Context) error {
				fmt.Println("Checking DB status.")
				if err := status(clictx); err != nil {
					log.Fatal(err)
				}
				return nil
			},
		},
	}

	// Global flags. Used when no "command" passed. Must be repeated above for commands.
	app.Flags = []cli.Flag{
		confFlag,
	}

	// There is no "default" command. Print help and exit.
	app.Action = func(clictx *cli.Context) error {
		fmt.Printf("Must specify command. Run `%s help` for info", app.Name)
		return nil
	}

	app.Run(os.Args)
}

func loadConf(clictx *cli.Context) (config.AppConfiguration, error) {
	path := clictx.String("conf")
	if path == "" {
		return defaultConfig, nil
	}
	return config.LoadYAMLConfig(path)
}

// migrateUp connects and brings the schema to the version the code expects.
func migrateUp(clictx *cli.Context) error {
	conf, err := loadConf(clictx)
	if err != nil {
		return err
	}
	db, err := conf.DatabaseConnection.GetDatabaseHandle()
	if err != nil {
		return fmt.Errorf("could not connect to db: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("could not ping db: %v", err)
	}
	if err := schema.MigrateUp(db.DB, conf.DatabaseConnection.Driver); err != nil {
		return err
	}
	fmt.Println("migrations applied")
	return nil
}

// status prints the schema migration state and the db identity row.
func status(clictx *cli.Context) error {
	conf, err := loadConf(clictx)
	if err != nil {
		return err
	}
	db, err := conf.DatabaseConnection.GetDatabaseHandle()
	if err != nil {
		return fmt.Errorf("could not connect to db: %v", err)
	}
	err = schema.CheckStatus(db.DB, conf.DatabaseConnection.Driver)
	db.Close()
	if err != nil {
		return err
	}
	fmt.Println("schema is current")

	d, identifier, err := dao.NewDataAccessLayer(conf.DatabaseConnection)
	if err != nil {
		return err
	}
	defer d.RecordDB.Close()
	state, err := d.GetDBState()
	if err != nil {
		return err
	}
	fmt.Printf("database identifier: %s\n", identifier)
	fmt.Printf("schema version: %s created %s\n", state.SchemaVersion, state.CreatedDate.Format("2006-01-02"))
	return nil
}
