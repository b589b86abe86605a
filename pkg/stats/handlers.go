package stats

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shelfwise/circulation/pkg/errcodes"
)

type handler struct {
	statsService *Service
}

func (h *handler) retrieve(c echo.Context) error {
	stats, err := h.statsService.RetrieveStats(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, stats))
}

func (h *handler) report(c echo.Context) error {
	params := ReportQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	opts := ReportOptions{}
	if params.From != "" {
		from, err := time.Parse(time.DateOnly, params.From)
		if err != nil {
			return errcodes.ValidationError(`"from" should be in the format of YYYY-MM-DD`)
		}
		opts.From = &from
	}
	if params.To != "" {
		to, err := time.Parse(time.DateOnly, params.To)
		if err != nil {
			return errcodes.ValidationError(`"to" should be in the format of YYYY-MM-DD`)
		}
		to = to.AddDate(0, 0, 1)
		opts.To = &to
	}
	if opts.From != nil && opts.To != nil && !opts.From.Before(*opts.To) {
		return errcodes.ValidationError(`"from" can't be after "to"`)
	}

	report, err := h.statsService.RetrieveReport(c.Request().Context(), opts)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, report))
}
