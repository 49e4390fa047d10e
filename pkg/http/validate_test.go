package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Symbol string `param:"symbol" validate:"required,alphanum,max=20"`
	Window int    `query:"zwin" default:"120" validate:"gte=2,lte=500"`
	From   string `query:"from" validate:"omitempty,timestamp"`
	Preset string `query:"preset" validate:"omitempty,colour"`
}

func init() {
	RegisterValidation("colour", func(v string) bool { return strings.EqualFold(v, "red") })
}

func bind(t *testing.T, target string) (*sampleRequest, []ValidationError) {
	t.Helper()
	e := echo.New()
	req := &sampleRequest{}
	var verrs []ValidationError
	e.GET("/x/:symbol", func(c echo.Context) error {
		if v := ReadAndValidateRequest(c, req); v != nil {
			verrs = v.([]ValidationError)
			return BadRequestResponse(c, v)
		}
		return SuccessResponse(c, req)
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return req, verrs
}

func TestReadAndValidateAppliesDefaults(t *testing.T) {
	req, verrs := bind(t, "/x/BTCUSDT?from=2024-03-01&preset=RED")
	require.Empty(t, verrs)
	assert.Equal(t, "BTCUSDT", req.Symbol)
	assert.Equal(t, 120, req.Window)
}

func TestReadAndValidateNamesQueryFields(t *testing.T) {
	_, verrs := bind(t, "/x/BTC-USD?zwin=1&from=yesterday&preset=blue")
	require.Len(t, verrs, 4)
	byField := map[string]ValidationError{}
	for _, v := range verrs {
		byField[v.Field] = v
	}
	assert.Equal(t, "ERR_ALPHANUM", byField["symbol"].Code)
	assert.Equal(t, "ERR_GTE", byField["zwin"].Code)
	assert.Equal(t, "2", byField["zwin"].Params["min"])
	assert.Contains(t, byField["from"].Message, "RFC3339")
	assert.Equal(t, "ERR_COLOUR", byField["preset"].Code)
}

func TestAppErrorResponse(t *testing.T) {
	write := func(err error) (int, []*AppError) {
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		require.NoError(t, AppErrorResponse(c, err))
		var env struct {
			Data []*AppError `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		return rec.Code, env.Data
	}

	code, errs := write(BadGatewayError("HTTP 503: busy"))
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "ERR_UPSTREAM", errs[0].Code)

	code, errs = write(errors.New("db password leaked"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Something went wrong", errs[0].Message)
}

func TestValidationMessages(t *testing.T) {
	type boundsRequest struct {
		Name  string `json:"name" validate:"max=3"`
		Mode  string `json:"mode" validate:"oneof=fast slow"`
		Count int    `json:"count" validate:"min=2"`
	}
	errs := toValidationErrors(validate.Struct(&boundsRequest{Name: "abcd", Mode: "warp"}))
	require.Len(t, errs, 3)
	assert.Equal(t, "name must be at most 3 characters", errs[0].Message)
	assert.Equal(t, "mode must be one of: fast, slow", errs[1].Message)
	assert.Equal(t, []string{"fast", "slow"}, errs[1].Params["options"])
	assert.Equal(t, "count must be at least 2", errs[2].Message)

	errs = toValidationErrors(errors.New("unexpected EOF"))
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_UNKNOWN", errs[0].Code)
}
