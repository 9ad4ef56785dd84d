package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uk.co.dudmesh.tweetqueue/internal/model"
	"uk.co.dudmesh.tweetqueue/internal/service/delivery"
	"uk.co.dudmesh.tweetqueue/pkg/oauth1"
	"uk.co.dudmesh.tweetqueue/pkg/platform"
)

const testSecret = "test-secret"

type fakeDeliveryService struct {
	result   delivery.PostResult
	summary  delivery.PassSummary
	passErr  error
	tweetID  model.TweetID
	callerID model.UserID
	passCtx  context.Context
}

func (f *fakeDeliveryService) PostNow(ctx context.Context, tweetID model.TweetID, callerID model.UserID) delivery.PostResult {
	f.tweetID = tweetID
	f.callerID = callerID
	return f.result
}

func (f *fakeDeliveryService) RunPass(ctx context.Context) (delivery.PassSummary, error) {
	f.passCtx = ctx
	return f.summary, f.passErr
}

type fakeVerifier struct {
	account *platform.Account
	err     error
	token   oauth1.Token
}

func (f *fakeVerifier) VerifyCredentials(ctx context.Context, token oauth1.Token) (*platform.Account, error) {
	f.token = token
	return f.account, f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newServer(secret string, svc DeliveryService, verifier AccountVerifier, pinger Pinger) *echo.Echo {
	e := echo.New()
	api := e.Group("/api", CallerIdentity(secret))
	api.POST("/tweets/:id/post", PostNow(svc))
	api.POST("/passes", RunPass(svc))
	api.POST("/connection/test", TestConnection(verifier))
	e.GET("/healthz", Healthz(pinger))
	return e
}

func bearer(t *testing.T, subject string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   subject,
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func do(e *echo.Echo, method, path, body, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPostNow(t *testing.T) {
	upstream := &platform.UpstreamError{StatusCode: 401, Body: "Unauthorized"}

	cases := []struct {
		name   string
		result delivery.PostResult
		status int
	}{
		{"Success", delivery.PostResult{Success: true, TwitterID: "123"}, http.StatusOK},
		{"Not Found", delivery.PostResult{Error: model.NotFound("tweet", "t1")}, http.StatusNotFound},
		{"Not Connected", delivery.PostResult{Error: model.ErrorNotConnected}, http.StatusConflict},
		{"Upstream", delivery.PostResult{Error: upstream}, http.StatusBadGateway},
		{"Configuration", delivery.PostResult{Error: fmt.Errorf("posting tweet: %w", model.ErrorConfiguration)}, http.StatusServiceUnavailable},
		{"Other", delivery.PostResult{Error: errors.New("database is locked")}, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			svc := &fakeDeliveryService{result: tc.result}
			e := newServer("", svc, &fakeVerifier{}, fakePinger{})

			rec := do(e, http.MethodPost, "/api/tweets/t1/post", "", "")
			assert.Equal(tc.status, rec.Code)
			assert.Equal(model.TweetID("t1"), svc.tweetID)
			assert.Equal(model.UserID(""), svc.callerID)

			res := postResponse{}
			assert.Nil(json.Unmarshal(rec.Body.Bytes(), &res))
			assert.Equal(tc.result.Success, res.Success)
			assert.Equal(tc.result.TwitterID, res.TwitterID)
			if tc.result.Error != nil {
				assert.Equal(tc.result.Error.Error(), res.Error)
			}
		})
	}
}

func TestCallerIdentity(t *testing.T) {
	svc := &fakeDeliveryService{result: delivery.PostResult{Success: true, TwitterID: "123"}}
	e := newServer(testSecret, svc, &fakeVerifier{}, fakePinger{})

	t.Run("Valid Token", func(t *testing.T) {
		rec := do(e, http.MethodPost, "/api/tweets/t1/post", "", bearer(t, "user-1"))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, model.UserID("user-1"), svc.callerID)
	})

	t.Run("Missing Token", func(t *testing.T) {
		rec := do(e, http.MethodPost, "/api/tweets/t1/post", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Wrong Secret", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{Subject: "user-1"})
		signed, err := token.SignedString([]byte("other-secret"))
		require.NoError(t, err)

		rec := do(e, http.MethodPost, "/api/tweets/t1/post", "", "Bearer "+signed)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Expired", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
			Subject:   "user-1",
			ExpiresAt: time.Now().Add(-time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte(testSecret))
		require.NoError(t, err)

		rec := do(e, http.MethodPost, "/api/tweets/t1/post", "", "Bearer "+signed)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRunPass(t *testing.T) {
	startedAt := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	t.Run("Summary", func(t *testing.T) {
		assert := assert.New(t)
		svc := &fakeDeliveryService{summary: delivery.PassSummary{Total: 2, Succeeded: 1, Failed: 1, StartedAt: startedAt}}
		e := newServer("", svc, &fakeVerifier{}, fakePinger{})

		rec := do(e, http.MethodPost, "/api/passes", "", "")
		assert.Equal(http.StatusOK, rec.Code)

		res := map[string]interface{}{}
		assert.Nil(json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(true, res["success"])
		assert.Equal(float64(2), res["total"])
		assert.Equal(float64(1), res["succeeded"])
		assert.Equal(float64(1), res["failed"])
		assert.Equal("2026-10-15T12:00:00Z", res["timestamp"])
	})

	t.Run("Caller Hangs Up", func(t *testing.T) {
		svc := &fakeDeliveryService{}
		e := newServer("", svc, &fakeVerifier{}, fakePinger{})

		reqCtx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodPost, "/api/passes", nil).WithContext(reqCtx)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, svc.passCtx.Err())
	})

	statuses := map[error]int{
		fmt.Errorf("running pass: %w", model.ErrorConfiguration): http.StatusServiceUnavailable,
		model.ErrorPassInProgress:                                http.StatusConflict,
		errors.New("selecting due work items: boom"):             http.StatusInternalServerError,
	}
	for err, status := range statuses {
		svc := &fakeDeliveryService{passErr: err}
		e := newServer("", svc, &fakeVerifier{}, fakePinger{})

		rec := do(e, http.MethodPost, "/api/passes", "", "")
		assert.Equal(t, status, rec.Code, err.Error())
		assert.Contains(t, rec.Body.String(), `"success":false`)
	}
}

func TestTestConnection(t *testing.T) {
	t.Run("Verified", func(t *testing.T) {
		assert := assert.New(t)
		verifier := &fakeVerifier{account: &platform.Account{ID: "42", Username: "someone", Name: "Some One"}}
		e := newServer("", &fakeDeliveryService{}, verifier, fakePinger{})

		rec := do(e, http.MethodPost, "/api/connection/test", `{"access_token":"a","access_token_secret":"b"}`, "")
		assert.Equal(http.StatusOK, rec.Code)
		assert.Equal(oauth1.Token{Token: "a", Secret: "b"}, verifier.token)

		res := connectionTestResponse{}
		assert.Nil(json.Unmarshal(rec.Body.Bytes(), &res))
		assert.True(res.Success)
		assert.Equal("someone", res.Username)
		assert.Equal("42", res.UserID)
	})

	t.Run("Missing Fields", func(t *testing.T) {
		e := newServer("", &fakeDeliveryService{}, &fakeVerifier{}, fakePinger{})
		rec := do(e, http.MethodPost, "/api/connection/test", `{"access_token":"a"}`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Rejected", func(t *testing.T) {
		verifier := &fakeVerifier{err: &platform.UpstreamError{StatusCode: 401, Body: "Unauthorized"}}
		e := newServer("", &fakeDeliveryService{}, verifier, fakePinger{})
		rec := do(e, http.MethodPost, "/api/connection/test", `{"access_token":"a","access_token_secret":"b"}`, "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "401")
	})
}

func TestHealthz(t *testing.T) {
	e := newServer("", &fakeDeliveryService{}, &fakeVerifier{}, fakePinger{})
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/healthz", "", "").Code)

	e = newServer("", &fakeDeliveryService{}, &fakeVerifier{}, fakePinger{err: errors.New("closed")})
	assert.Equal(t, http.StatusServiceUnavailable, do(e, http.MethodGet, "/healthz", "", "").Code)
}
