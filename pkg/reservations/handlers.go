package reservations

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shelfwise/circulation/pkg/auth"
	"github.com/shelfwise/circulation/pkg/errcodes"
	"github.com/shelfwise/circulation/pkg/models"
	"github.com/shelfwise/circulation/pkg/policy"
)

type handler struct {
	reservationService *Service
}

type reservationResponse struct {
	*models.Reservation
	// Expired is true once the hold has lapsed, even before the sweep
	// marks it.
	Expired bool `json:"expired"`
}

func (h *handler) respond(r *models.Reservation) reservationResponse {
	return reservationResponse{Reservation: r, Expired: r.IsExpired(h.reservationService.Now())}
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateReservationPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	userID := params.UserID
	if userID == 0 {
		userID = actor.ID
	}
	if !policy.CanManage(actor, userID) {
		return errcodes.Forbidden("Reserving for another borrower")
	}

	reservation, err := h.reservationService.CreateReservation(ctx, CreateReservationOptions{
		UserID: userID,
		BookID: params.BookID,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	reservation, err = h.reservationService.RetrieveReservation(ctx, RetrieveReservationOptions{ID: &reservation.ID})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, h.respond(reservation)))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Reservation")
	}

	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}

	reservation, err := h.reservationService.RetrieveReservation(ctx, RetrieveReservationOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}
	if !policy.CanManage(actor, reservation.UserID) {
		return errcodes.NotFound("Reservation")
	}

	return errors.WithStack(c.JSON(http.StatusOK, h.respond(reservation)))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListReservationsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	if actor.Role != policy.RoleAdministrator {
		params.UserID = &actor.ID
	}

	reservations, total, err := h.reservationService.ListReservationsWithTotal(ctx, ListReservationsOptions{
		Limit:  &params.Limit,
		Offset: &params.Offset,
		UserID: params.UserID,
		BookID: params.BookID,
		Status: params.Status,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Reservations []reservationResponse `json:"reservations"`
		Total        int                   `json:"total"`
	}{make([]reservationResponse, 0, len(reservations)), total}
	for _, r := range reservations {
		resp.Reservations = append(resp.Reservations, h.respond(r))
	}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) cancel(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Reservation")
	}

	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}

	reservation, err := h.reservationService.CancelReservation(ctx, id, actor)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, h.respond(reservation)))
}

func (h *handler) expire(c echo.Context) error {
	ctx := c.Request().Context()

	params := ExpirePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	at := h.reservationService.Now()
	if params.At != nil {
		at = params.At.UTC()
	}

	expired, err := h.reservationService.ExpireReservations(ctx, at)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, struct {
		At      time.Time `json:"at"`
		Expired int       `json:"expired"`
	}{at, expired}))
}
