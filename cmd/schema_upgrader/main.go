package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"

	"github.com/kbase/collections/pkg/configs/service"
	"github.com/kbase/collections/pkg/domain/collections/db/postgres"
	"github.com/kbase/collections/pkg/utils/try"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Config string `flag:"config" help:"The path to the service config. Database and schema repository are read from it."`

	Host     string `flag:"host" help:"The host of the database."`
	Port     int    `flag:"port" help:"The port of the database."`
	User     string `flag:"user" help:"The user of the database."`
	Password string `flag:"pass" help:"The password of the database."`
	Database string `flag:"database" help:"The name of the database."`

	Schema string `flag:"schema" help:"The path to the schema repository directory."`
	Check  bool   `flag:"check" help:"Report versions and exit non-zero if the schema is outdated, without upgrading."`
}

var errOutdated = errors.New("schema is outdated")

func main() {
	logger := log.Default()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	port := 5432
	if sp := os.Getenv("DB_PORT"); sp != "" {
		p, err := strconv.Atoi(sp)
		if err == nil {
			port = p
		}
	}

	cmd := try.To(flarc.NewCommand(
		"database schema upgrader of the collections service",
		Flag{
			Config: os.Getenv("COLLECTIONS_CONFIG"),

			Host:     os.Getenv("DB_HOST"),
			Port:     port,
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Database: os.Getenv("DB_NAME"),

			Schema: os.Getenv("COLLECTIONS_SCHEMA"),
		},
		flarc.Args{},
		func(ctx context.Context, c flarc.Commandline[Flag], _ []any) error {
			flags := c.Flags()
			dsn, repo, err := target(flags)
			if err != nil {
				return err
			}

			db, err := postgres.New(ctx, dsn, postgres.WithSchemaRepository(repo))
			if err != nil {
				return err
			}
			defer db.Close()
			schema := db.Schema()

			if flags.Check {
				current, err := schema.Version(ctx)
				if err != nil {
					return err
				}
				latest, err := schema.Latest()
				if err != nil {
					return err
				}
				fmt.Fprintf(c.Stdout(), "current: %d, latest: %d\n", current, latest)
				if current < latest {
					return errOutdated
				}
				return nil
			}

			logger.Println("upgrading schema...")
			return schema.Upgrade(ctx)
		},
	)).OrFatal(logger)

	os.Exit(flarc.Run(ctx, cmd))
}

// target returns the connection string and the schema repository.
//
// Values in the service config take precedence over flags.
func target(flags Flag) (string, string, error) {
	if flags.Config != "" {
		conf, err := service.Load(flags.Config)
		if err != nil {
			return "", "", err
		}
		return conf.Database(), conf.SchemaRepository(), nil
	}

	if flags.Schema == "" {
		return "", "", fmt.Errorf("%w: flag `--schema` (or, envvar COLLECTIONS_SCHEMA) is required", flarc.ErrUsage)
	}
	if flags.Host == "" || flags.Database == "" {
		return "", "", fmt.Errorf("%w: flags `--host` and `--database` are required without `--config`", flarc.ErrUsage)
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(flags.User, flags.Password),
		Host:   fmt.Sprintf("%s:%d", flags.Host, flags.Port),
		Path:   "/" + flags.Database,
	}
	return dsn.String(), flags.Schema, nil
}
