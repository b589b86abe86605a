package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/shelfwise/circulation/pkg/auth"
	"github.com/shelfwise/circulation/pkg/authors"
	"github.com/shelfwise/circulation/pkg/binder"
	"github.com/shelfwise/circulation/pkg/books"
	"github.com/shelfwise/circulation/pkg/categories"
	"github.com/shelfwise/circulation/pkg/clock"
	"github.com/shelfwise/circulation/pkg/config"
	"github.com/shelfwise/circulation/pkg/errcodes"
	"github.com/shelfwise/circulation/pkg/inventory"
	"github.com/shelfwise/circulation/pkg/jobs"
	"github.com/shelfwise/circulation/pkg/loans"
	"github.com/shelfwise/circulation/pkg/policy"
	"github.com/shelfwise/circulation/pkg/reservations"
	"github.com/shelfwise/circulation/pkg/roles"
	"github.com/shelfwise/circulation/pkg/stats"
	"github.com/shelfwise/circulation/pkg/users"
	"github.com/uptrace/bun"
)

func New(cfg *config.Config, db *bun.DB, clk clock.Clock, p policy.Policy) (*http.Server, error) {
	e, err := newEcho(cfg, db, clk, p)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func newEcho(cfg *config.Config, db *bun.DB, clk clock.Clock, p policy.Policy) (*echo.Echo, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	sessionDuration := time.Duration(cfg.SessionDurationHours) * time.Hour
	usersService := users.NewService(db, clk, p)
	authMiddleware := auth.RegisterRoutes(e, db, cfg.JWTSecret, sessionDuration, usersService)

	// Lending policy (requires authentication)
	config.RegisterRoutesWithAuth(e, cfg, authMiddleware.Authenticate)

	ledger := inventory.NewLedger(db, clk)
	inventory.RegisterRoutes(e, ledger, authMiddleware)

	registerProtectedRoutes(e, db, clk, p, ledger, usersService, authMiddleware)

	e.RouteNotFound("/*", notFoundHandler)
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	return e, nil
}

// registerProtectedRoutes registers every route group that needs a signed in
// user. Permissions are checked per route.
func registerProtectedRoutes(e *echo.Echo, db *bun.DB, clk clock.Clock, p policy.Policy, ledger *inventory.Ledger, usersService *users.Service, authMiddleware *auth.Middleware) {
	// Catalog
	booksGroup := e.Group("/books")
	booksGroup.Use(authMiddleware.Authenticate)
	books.RegisterRoutesWithGroup(booksGroup, books.NewService(db, ledger, clk), authMiddleware)

	authorsGroup := e.Group("/authors")
	authorsGroup.Use(authMiddleware.Authenticate)
	authors.RegisterRoutesWithGroup(authorsGroup, authors.NewService(db, clk), authMiddleware)

	categoriesGroup := e.Group("/categories")
	categoriesGroup.Use(authMiddleware.Authenticate)
	categories.RegisterRoutesWithGroup(categoriesGroup, categories.NewService(db, clk), authMiddleware)

	// Circulation
	loansGroup := e.Group("/loans")
	loansGroup.Use(authMiddleware.Authenticate)
	loans.RegisterRoutesWithGroup(loansGroup, loans.NewService(db, ledger, p, clk), authMiddleware)

	reservationsGroup := e.Group("/reservations")
	reservationsGroup.Use(authMiddleware.Authenticate)
	reservations.RegisterRoutesWithGroup(reservationsGroup, reservations.NewService(db, ledger, p, clk), authMiddleware)

	// Borrowers
	usersGroup := e.Group("/users")
	usersGroup.Use(authMiddleware.Authenticate)
	users.RegisterRoutesWithGroup(usersGroup, usersService, authMiddleware)

	rolesGroup := e.Group("/roles")
	rolesGroup.Use(authMiddleware.Authenticate)
	roles.RegisterRoutesWithGroup(rolesGroup, roles.NewService(db), authMiddleware)

	// Jobs
	jobsGroup := e.Group("/jobs")
	jobsGroup.Use(authMiddleware.Authenticate)
	jobs.RegisterRoutesWithGroup(jobsGroup, jobs.NewService(db, clk), authMiddleware)

	// Dashboard
	statsGroup := e.Group("/stats")
	statsGroup.Use(authMiddleware.Authenticate)
	stats.RegisterRoutesWithGroup(statsGroup, stats.NewService(db, clk), authMiddleware)
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
