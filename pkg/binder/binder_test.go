package binder

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type params struct {
	Hello string `json:"hello" mod:"trim" validate:"max=9"`
	Genre string `json:"genre,omitempty" validate:"omitempty,genre"`
	Omit  string `json:"-"`
}

type listParams struct {
	Limit  int    `query:"limit" default:"20" validate:"min=1,max=100"`
	Status string `query:"status" validate:"omitempty,oneof=active returned"`
}

type optionalParams struct {
	DryRun bool `json:"dry_run"`
}

var (
	goodJSON             = `{"hello":" world "}`
	unknownFieldsErrJSON = `{"hello":"world","foo":"bar"}`
	typeErrJSON          = `{"hello":123}`
	validationErrJSON    = `{"hello":"0123456789"}`
	badGenreJSON         = `{"hello":"world","genre":"poetry"}`
	malformedJSON        = `{"hello":`
)

func TestBind_JSON(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)

	t.Run("only allows application/json bodies", func(t *testing.T) {
		c := newContext(http.MethodPost, "/", goodJSON, echo.MIMEApplicationXML)
		err := b.Bind(&params{}, c)
		assert.Contains(t, err.Error(), "Unsupported Media Type")
	})

	t.Run("disallows unknown fields", func(t *testing.T) {
		c := newContext(http.MethodPost, "/", unknownFieldsErrJSON, echo.MIMEApplicationJSON)
		err := b.Bind(&params{}, c)
		assert.Contains(t, err.Error(), `Unknown Parameter "foo"`)
	})

	t.Run("returns a good message for type errors", func(t *testing.T) {
		c := newContext(http.MethodPost, "/", typeErrJSON, echo.MIMEApplicationJSON)
		err := b.Bind(&params{}, c)
		assert.Contains(t, err.Error(), `"hello" should be of type string`)
	})

	t.Run("malformed payloads", func(t *testing.T) {
		c := newContext(http.MethodPost, "/", malformedJSON, echo.MIMEApplicationJSON)
		err := b.Bind(&params{}, c)
		assert.Contains(t, err.Error(), "Malformed Payload")
	})

	t.Run("use mod tag to modify params", func(t *testing.T) {
		c := newContext(http.MethodPost, "/", goodJSON, echo.MIMEApplicationJSON)
		p := params{}
		require.NoError(t, b.Bind(&p, c))
		assert.Equal(t, "world", p.Hello)
	})

	t.Run("use validate tag to validate params", func(t *testing.T) {
		c := newContext(http.MethodPost, "/", validationErrJSON, echo.MIMEApplicationJSON)
		err := b.Bind(&params{}, c)
		assert.Contains(t, err.Error(), "length must be less than or equal to 9 characters")
	})

	t.Run("validates genres", func(t *testing.T) {
		c := newContext(http.MethodPost, "/", badGenreJSON, echo.MIMEApplicationJSON)
		err := b.Bind(&params{}, c)
		assert.Contains(t, err.Error(), `"genre" must be one of the following`)
	})
}

func TestBind_EmptyBody(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)

	c := newContext(http.MethodPost, "/", "", echo.MIMEApplicationJSON)
	err = b.Bind(&optionalParams{}, c)
	assert.Contains(t, err.Error(), "Request body can't be empty.")

	c = newContext(http.MethodPost, "/", "", echo.MIMEApplicationJSON)
	handler := AllowEmptyBody(func(c echo.Context) error {
		return b.Bind(&optionalParams{}, c)
	})
	assert.NoError(t, handler(c))
}

func TestBind_Query(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)

	t.Run("applies defaults", func(t *testing.T) {
		c := newContext(http.MethodGet, "/", "", "")
		p := listParams{}
		require.NoError(t, b.Bind(&p, c))
		assert.Equal(t, 20, p.Limit)
	})

	t.Run("decodes values", func(t *testing.T) {
		c := newContext(http.MethodGet, "/?limit=5&status=returned", "", "")
		p := listParams{}
		require.NoError(t, b.Bind(&p, c))
		assert.Equal(t, 5, p.Limit)
		assert.Equal(t, "returned", p.Status)
	})

	t.Run("type errors", func(t *testing.T) {
		c := newContext(http.MethodGet, "/?limit=lots", "", "")
		err := b.Bind(&listParams{}, c)
		assert.Contains(t, err.Error(), `"limit" should be of type int`)
	})

	t.Run("unknown keys", func(t *testing.T) {
		c := newContext(http.MethodGet, "/?color=red", "", "")
		err := b.Bind(&listParams{}, c)
		assert.Contains(t, err.Error(), `Unknown Parameter "color"`)
	})

	t.Run("validation", func(t *testing.T) {
		c := newContext(http.MethodGet, "/?status=lost", "", "")
		err := b.Bind(&listParams{}, c)
		assert.Contains(t, err.Error(), `"status" must be one of the following: "active", "returned"`)
	})
}

func newContext(method, target, payload, mime string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(payload))
	if mime != "" {
		req.Header.Set(echo.HeaderContentType, mime)
	}
	rr := httptest.NewRecorder()
	return e.NewContext(req, rr)
}
