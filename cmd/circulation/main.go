package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/shelfwise/circulation/pkg/authors"
	"github.com/shelfwise/circulation/pkg/books"
	"github.com/shelfwise/circulation/pkg/categories"
	"github.com/shelfwise/circulation/pkg/clock"
	"github.com/shelfwise/circulation/pkg/config"
	"github.com/shelfwise/circulation/pkg/database"
	"github.com/shelfwise/circulation/pkg/errcodes"
	"github.com/shelfwise/circulation/pkg/inventory"
	"github.com/shelfwise/circulation/pkg/migrations"
	"github.com/shelfwise/circulation/pkg/models"
	"github.com/shelfwise/circulation/pkg/policy"
	"github.com/shelfwise/circulation/pkg/reservations"
	"github.com/shelfwise/circulation/pkg/stats"
	"github.com/shelfwise/circulation/pkg/users"
	"github.com/uptrace/bun"
	"github.com/urfave/cli/v2"
)

func main() {
	log := logger.New()

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	p, err := policy.FromConfig(cfg)
	if err != nil {
		log.Err(err).Fatal("policy error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	clk := clock.New()

	app := &cli.App{
		Name:        "circulation",
		Usage:       "maintenance commands for the circulation database",
		Description: "Runs the same operations the worker and admin API expose, from the command line.",
		Before: func(c *cli.Context) error {
			_, err := migrations.BringUpToDate(c.Context, db)
			return err
		},
		Commands: []*cli.Command{
			{
				Name:  "reconcile",
				Usage: "recompute available copies for every book",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dry-run", Usage: "report drift without fixing it"},
				},
				Action: func(c *cli.Context) error {
					ctx := log.WithContext(c.Context)
					report, err := inventory.NewLedger(db, clk).Reconcile(ctx, inventory.ReconcileOptions{
						DryRun: c.Bool("dry-run"),
					})
					if err != nil {
						return err
					}

					for _, d := range report.Drifts {
						fmt.Printf("book %d %q: stored %d, derived %d\n", d.BookID, d.Title, d.Stored, d.Derived)
					}
					fmt.Printf("Checked %d books, %d drifted, %d corrected\n", report.Checked, len(report.Drifts), report.Corrected)
					return nil
				},
			},
			{
				Name:  "expire",
				Usage: "expire reservations whose hold has run out",
				Flags: []cli.Flag{
					&cli.TimestampFlag{Name: "at", Usage: "cutoff time (RFC3339), defaults to now", Layout: time.RFC3339},
				},
				Action: func(c *cli.Context) error {
					ctx := log.WithContext(c.Context)
					at := clk.Now()
					if ts := c.Timestamp("at"); ts != nil {
						at = ts.UTC()
					}

					svc := reservations.NewService(db, inventory.NewLedger(db, clk), p, clk)
					expired, err := svc.ExpireReservations(ctx, at)
					if err != nil {
						return err
					}

					fmt.Printf("Expired %d reservations as of %s\n", expired, at.Format(time.RFC3339))
					return nil
				},
			},
			{
				Name:  "seed",
				Usage: "create an administrator and a starter catalog",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "admin-username", Value: "admin"},
					&cli.StringFlag{Name: "admin-password", Required: true, EnvVars: []string{"CIRCULATION_ADMIN_PASSWORD"}},
				},
				Action: func(c *cli.Context) error {
					ctx := log.WithContext(c.Context)
					return seed(ctx, db, clk, p, c.String("admin-username"), c.String("admin-password"))
				},
			},
		},
	}
	err = app.Run(os.Args)
	db.Close()
	if err != nil {
		log.Err(err).Fatal("app run error")
	}
}

type seedBook struct {
	title    string
	author   string
	genre    string
	category string
	copies   int
}

var seedCategories = []*models.Category{
	{Name: "Classics", Description: pointerutil.String("Books that have stood the test of time.")},
	{Name: "Science", Description: pointerutil.String("Popular science and natural history.")},
	{Name: "Young Readers"},
}

var seedBooks = []seedBook{
	{"Pride and Prejudice", "Jane Austen", models.GenreRomance, "Classics", 3},
	{"Emma", "Jane Austen", models.GenreRomance, "Classics", 2},
	{"The Hobbit", "J. R. R. Tolkien", models.GenreFantasy, "Young Readers", 4},
	{"Treasure Island", "Robert Louis Stevenson", models.GenreAdventure, "Young Readers", 2},
	{"The Origin of Species", "Charles Darwin", models.GenreNonFiction, "Science", 1},
	{"Dracula", "Bram Stoker", models.GenreHorror, "Classics", 2},
}

// seed is safe to run twice: the administrator is only created on an empty
// user table and books only on an empty catalog.
func seed(ctx context.Context, db *bun.DB, clk clock.Clock, p policy.Policy, username, password string) error {
	log := logger.FromContext(ctx)

	counts, err := stats.NewService(db, clk).RetrieveStats(ctx)
	if err != nil {
		return err
	}

	if counts.Users == 0 {
		admin, err := users.NewService(db, clk, p).Create(ctx, users.CreateUserOptions{
			Username: username,
			Password: password,
			RoleName: models.RoleAdmin,
		})
		if err != nil {
			return err
		}
		log.Info("admin created", logger.Data{"user_id": admin.ID, "username": admin.Username})
	}

	categoryService := categories.NewService(db, clk)
	categoryIDs := map[string]int{}
	for _, c := range seedCategories {
		category := &models.Category{Name: c.Name, Description: c.Description}
		err := categoryService.CreateCategory(ctx, category)
		if err != nil && !errcodes.HasCode(err, "conflict") {
			return err
		}
		existing, err := categoryService.RetrieveCategory(ctx, categories.RetrieveCategoryOptions{Name: &category.Name})
		if err != nil {
			return err
		}
		categoryIDs[existing.Name] = existing.ID
	}

	if counts.Books > 0 {
		log.Info("catalog already has books, skipping", logger.Data{"books": counts.Books})
		return nil
	}

	authorService := authors.NewService(db, clk)
	bookService := books.NewService(db, inventory.NewLedger(db, clk), clk)
	authorIDs := map[string]int{}
	for _, sb := range seedBooks {
		if _, ok := authorIDs[sb.author]; !ok {
			author := &models.Author{Name: sb.author}
			if err := authorService.CreateAuthor(ctx, author); err != nil {
				return err
			}
			authorIDs[sb.author] = author.ID
		}

		categoryID := categoryIDs[sb.category]
		book := &models.Book{
			Title:       sb.title,
			AuthorID:    authorIDs[sb.author],
			CategoryID:  &categoryID,
			Genre:       sb.genre,
			TotalCopies: sb.copies,
		}
		if err := bookService.CreateBook(ctx, book); err != nil {
			return errors.Wrapf(err, "failed to seed %q", sb.title)
		}
	}

	log.Info("catalog seeded", logger.Data{"authors": len(authorIDs), "books": len(seedBooks)})
	return nil
}
