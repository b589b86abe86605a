package inventory

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shelfwise/circulation/pkg/errcodes"
)

type handler struct {
	ledger *Ledger
}

func (h *handler) availability(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	availability, err := h.ledger.Availability(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, availability))
}

func (h *handler) reconcile(c echo.Context) error {
	ctx := c.Request().Context()

	params := ReconcilePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	report, err := h.ledger.Reconcile(ctx, ReconcileOptions{DryRun: params.DryRun})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, report))
}
