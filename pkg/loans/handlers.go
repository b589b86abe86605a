package loans

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
	loanService *Service
}

// loanResponse adds the fields derived from the current time.
type loanResponse struct {
	*models.Loan
	DisplayStatus     string `json:"display_status"`
	DaysOverdue       int    `json:"days_overdue"`
	RenewalsRemaining int    `json:"renewals_remaining"`
}

func (h *handler) respond(loan *models.Loan, now time.Time) loanResponse {
	return loanResponse{
		Loan:              loan,
		DisplayStatus:     loan.DisplayStatus(now),
		DaysOverdue:       loan.DaysOverdue(now),
		RenewalsRemaining: h.loanService.Policy().RenewalsRemaining(loan.RenewalCount),
	}
}

// authorizedLoan loads the loan and checks the caller may act on it.
func (h *handler) authorizedLoan(c echo.Context) (*models.Loan, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, errcodes.NotFound("Loan")
	}

	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return nil, err
	}

	loan, err := h.loanService.RetrieveLoan(c.Request().Context(), RetrieveLoanOptions{ID: &id})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if !policy.CanManage(actor, loan.UserID) {
		// Don't reveal other borrowers' loans.
		return nil, errcodes.NotFound("Loan")
	}

	return loan, nil
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateLoanPayload{}
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
		return errcodes.Forbidden("Lending to another borrower")
	}

	loan, err := h.loanService.CreateLoan(ctx, CreateLoanOptions{
		UserID: userID,
		BookID: params.BookID,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	loan, err = h.loanService.RetrieveLoan(ctx, RetrieveLoanOptions{ID: &loan.ID})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, h.respond(loan, h.loanService.Now())))
}

func (h *handler) retrieve(c echo.Context) error {
	loan, err := h.authorizedLoan(c)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, h.respond(loan, h.loanService.Now())))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListLoansQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	// Members only ever see their own loans.
	if actor.Role != policy.RoleAdministrator {
		params.UserID = &actor.ID
	}

	opts := ListLoansOptions{
		Limit:  &params.Limit,
		Offset: &params.Offset,
		UserID: params.UserID,
		BookID: params.BookID,
		Status: params.Status,
	}
	if params.DueBefore != "" {
		dueBefore, err := time.Parse(time.DateOnly, params.DueBefore)
		if err != nil {
			return errcodes.ValidationError(`"due_before" should be in the format of YYYY-MM-DD`)
		}
		opts.DueBefore = &dueBefore
	}

	loans, total, err := h.loanService.ListLoansWithTotal(ctx, opts)
	if err != nil {
		return errors.WithStack(err)
	}

	now := h.loanService.Now()
	resp := struct {
		Loans []loanResponse `json:"loans"`
		Total int            `json:"total"`
	}{make([]loanResponse, 0, len(loans)), total}
	for _, loan := range loans {
		resp.Loans = append(resp.Loans, h.respond(loan, now))
	}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) returnLoan(c echo.Context) error {
	loan, err := h.authorizedLoan(c)
	if err != nil {
		return err
	}

	returned, err := h.loanService.ReturnLoan(c.Request().Context(), loan.ID)
	if err != nil {
		return errors.WithStack(err)
	}
	returned.Book = loan.Book
	returned.User = loan.User

	return errors.WithStack(c.JSON(http.StatusOK, h.respond(returned, h.loanService.Now())))
}

func (h *handler) renew(c echo.Context) error {
	loan, err := h.authorizedLoan(c)
	if err != nil {
		return err
	}

	renewed, err := h.loanService.RenewLoan(c.Request().Context(), loan.ID)
	if err != nil {
		return errors.WithStack(err)
	}
	renewed.Book = loan.Book
	renewed.User = loan.User

	return errors.WithStack(c.JSON(http.StatusOK, h.respond(renewed, h.loanService.Now())))
}
