package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type filterReq struct {
	Symbol    string `query:"symbol" validate:"omitempty,alphanum,max=10"`
	Timeframe string `query:"timeframe" validate:"omitempty,oneof=15min 30min 60min"`
	Limit     int    `query:"limit" default:"50"`
}

func TestReadAndValidateRequest(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/x?symbol=SPY&timeframe=30min", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	var ok filterReq
	assert.Nil(t, ReadAndValidateRequest(c, &ok))
	assert.Equal(t, "SPY", ok.Symbol)
	assert.Equal(t, 50, ok.Limit)

	req = httptest.NewRequest(http.MethodGet, "/x?timeframe=5min", nil)
	c = e.NewContext(req, httptest.NewRecorder())
	var bad filterReq
	verrs, isList := ReadAndValidateRequest(c, &bad).([]ValidationError)
	require.True(t, isList)
	require.Len(t, verrs, 1)
	assert.Equal(t, "ERR_ONEOF", verrs[0].Code)
	assert.Equal(t, "timeframe", verrs[0].Field)
	assert.Equal(t, "timeframe must be one of: 15min, 30min, 60min", verrs[0].Message)
}

func TestAppErrorResponseStatus(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	err := UnavailableError("no scan yet").WithError(errors.New("not ready"))
	require.NoError(t, AppErrorResponse(c, err))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body APIResponse503Err
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 503, body.Status)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "ERR_UNAVAILABLE", body.Data[0].Code)

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, AppErrorResponse(c, errors.New("plain")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestClientSendAndParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["symbol"]})
	}))
	defer srv.Close()

	c := NewClient()
	var out map[string]string
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method: MethodPost, URL: srv.URL + "/ok", Body: map[string]string{"symbol": "SPY"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "SPY", out["echo"])

	err = c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL + "/fail"}, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 503, se.Code)
	assert.True(t, se.Temporary())
	assert.Equal(t, "overloaded", se.Body)
}
