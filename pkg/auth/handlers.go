package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shelfwise/circulation/pkg/models"
)

// CookieName is the name of the session cookie.
const CookieName = "circulation_session"

type handler struct {
	authService *Service
	registrar   Registrar
	cookieAge   time.Duration
}

func buildMeResponse(user *models.User) MeResponse {
	resp := MeResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		RoleID:      user.RoleID,
		Permissions: []string{},
	}
	if user.Role != nil {
		resp.RoleName = user.Role.Name
		for _, p := range user.Role.Permissions {
			resp.Permissions = append(resp.Permissions, p.Resource+":"+p.Operation)
		}
	}
	return resp
}

func (h *handler) setSessionCookie(c echo.Context, value string, maxAge int) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Request().TLS != nil || c.Request().Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *handler) startSession(c echo.Context, user *models.User) error {
	token, err := h.authService.GenerateToken(user)
	if err != nil {
		return errors.WithStack(err)
	}
	h.setSessionCookie(c, token, int(h.cookieAge.Seconds()))
	return nil
}

func (h *handler) login(c echo.Context) error {
	ctx := c.Request().Context()

	params := LoginPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.authService.Authenticate(ctx, params.Username, params.Password)
	if err != nil {
		return errors.WithStack(err)
	}

	if err := h.startSession(c, user); err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, buildMeResponse(user)))
}

func (h *handler) logout(c echo.Context) error {
	h.setSessionCookie(c, "", -1)
	return errors.WithStack(c.JSON(http.StatusOK, map[string]string{"message": "Logged out successfully"}))
}

func (h *handler) me(c echo.Context) error {
	return errors.WithStack(c.JSON(http.StatusOK, buildMeResponse(UserFromContext(c))))
}

func (h *handler) status(c echo.Context) error {
	count, err := h.authService.CountUsers(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, StatusResponse{NeedsSetup: count == 0}))
}

func (h *handler) setup(c echo.Context) error {
	ctx := c.Request().Context()

	params := SetupPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.authService.CreateFirstAdmin(ctx, params.Username, params.Email, params.Password)
	if err != nil {
		return errors.WithStack(err)
	}

	if err := h.startSession(c, user); err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, buildMeResponse(user)))
}

func (h *handler) register(c echo.Context) error {
	ctx := c.Request().Context()

	params := RegisterPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.registrar.RegisterMember(ctx, params.Username, params.Email, params.Password)
	if err != nil {
		return errors.WithStack(err)
	}

	if err := h.startSession(c, user); err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusCreated, buildMeResponse(user)))
}
