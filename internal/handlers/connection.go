package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"uk.co.dudmesh.tweetqueue/pkg/oauth1"
	"uk.co.dudmesh.tweetqueue/pkg/platform"
)

type AccountVerifier interface {
	VerifyCredentials(ctx context.Context, token oauth1.Token) (*platform.Account, error)
}

type connectionTestParams struct {
	AccessToken       string `json:"access_token"`
	AccessTokenSecret string `json:"access_token_secret"`
}

type connectionTestResponse struct {
	Success  bool   `json:"success"`
	Username string `json:"username,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Name     string `json:"name,omitempty"`
	Error    string `json:"error,omitempty"`
}

// TestConnection checks an access token pair against the platform before the
// account service stores it.
func TestConnection(verifier AccountVerifier) echo.HandlerFunc {
	return func(c echo.Context) error {
		params := &connectionTestParams{}
		if err := c.Bind(params); err != nil {
			return err
		}
		if params.AccessToken == "" || params.AccessTokenSecret == "" {
			return c.JSON(http.StatusBadRequest, connectionTestResponse{Error: "missing access token or secret"})
		}

		account, err := verifier.VerifyCredentials(c.Request().Context(), oauth1.Token{
			Token:  params.AccessToken,
			Secret: params.AccessTokenSecret,
		})
		if err != nil {
			return c.JSON(http.StatusBadGateway, connectionTestResponse{Error: err.Error()})
		}

		return c.JSON(http.StatusOK, connectionTestResponse{
			Success:  true,
			Username: account.Username,
			UserID:   account.ID,
			Name:     account.Name,
		})
	}
}
