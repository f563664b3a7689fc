package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/lectern/pkg/config"
	"github.com/shishobooks/lectern/pkg/database"
	"github.com/shishobooks/lectern/pkg/migrations"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"
)

func main() {
	log := logger.New()

	var db *bun.DB
	migrator := func() *migrate.Migrator {
		return migrate.NewMigrator(db, migrations.Migrations)
	}

	app := &cli.App{
		Name:  "migrations",
		Usage: "manage the reading database schema",
		Before: func(_ *cli.Context) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			db, err = database.New(cfg)
			return err
		},
		After: func(_ *cli.Context) error {
			if db == nil {
				return nil
			}
			return errors.WithStack(db.Close())
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "apply every pending migration",
				Action: func(c *cli.Context) error {
					group, err := migrations.BringUpToDate(c.Context, db)
					if err != nil {
						return err
					}
					if group.ID == 0 {
						log.Info("no new migrations to run")
						return nil
					}
					log.Info("migrated", logger.Data{"group_id": group.ID, "migrations": group.Migrations.String()})
					return nil
				},
			},
			{
				Name:  "rollback",
				Usage: "roll back the last migration group",
				Action: func(c *cli.Context) error {
					group, err := migrator().Rollback(c.Context)
					if err != nil {
						return errors.WithStack(err)
					}
					if group.ID == 0 {
						log.Info("no groups to roll back")
						return nil
					}
					log.Info("rolled back", logger.Data{"group_id": group.ID, "migrations": group.Migrations.String()})
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "list applied and pending migrations",
				Action: func(c *cli.Context) error {
					m := migrator()
					if err := m.Init(c.Context); err != nil {
						return errors.WithStack(err)
					}
					ms, err := m.MigrationsWithStatus(c.Context)
					if err != nil {
						return errors.WithStack(err)
					}
					log.Info("migration status", logger.Data{
						"all":        ms.String(),
						"unapplied":  ms.Unapplied().String(),
						"last_group": ms.LastGroup().String(),
					})
					return nil
				},
			},
			{
				Name:      "create",
				Usage:     "scaffold a new Go migration",
				ArgsUsage: "<words of the migration name>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return errors.New("a migration name is required")
					}
					name := strings.Join(c.Args().Slice(), "_")
					mf, err := migrator().CreateGoMigration(c.Context, name, migrate.WithGoTemplate(migrationTemplate))
					if err != nil {
						return errors.WithStack(err)
					}
					log.Info("created migration", logger.Data{"name": mf.Name, "path": mf.Path})
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Err(err).Fatal("migrations failed")
	}
}

const migrationTemplate = `package %s

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(ctx context.Context, db *bun.DB) error {
		_, err := db.ExecContext(ctx, "")
		return errors.WithStack(err)
	}

	down := func(ctx context.Context, db *bun.DB) error {
		_, err := db.ExecContext(ctx, "")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
`
