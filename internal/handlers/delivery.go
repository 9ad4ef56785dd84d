package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"uk.co.dudmesh.tweetqueue/internal/model"
	"uk.co.dudmesh.tweetqueue/internal/service/delivery"
	"uk.co.dudmesh.tweetqueue/pkg/platform"
)

type DeliveryService interface {
	PostNow(ctx context.Context, tweetID model.TweetID, callerID model.UserID) delivery.PostResult
	RunPass(ctx context.Context) (delivery.PassSummary, error)
}

type postResponse struct {
	Success   bool   `json:"success"`
	TwitterID string `json:"twitter_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type passResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	delivery.PassSummary
}

func PostNow(deliveryService DeliveryService) echo.HandlerFunc {
	return func(c echo.Context) error {
		tweetID := model.TweetID(c.Param("id"))
		if tweetID == "" {
			return c.JSON(http.StatusBadRequest, postResponse{Error: "missing tweet id"})
		}

		result := deliveryService.PostNow(c.Request().Context(), tweetID, callerID(c))
		if result.Success {
			res := postResponse{Success: true, TwitterID: result.TwitterID}
			if result.Error != nil {
				res.Error = result.Error.Error()
			}
			return c.JSON(http.StatusOK, res)
		}

		return c.JSON(postStatus(result.Error), postResponse{Error: result.Error.Error()})
	}
}

func postStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrorNotConnected):
		return http.StatusConflict
	case errors.Is(err, model.ErrorConfiguration):
		return http.StatusServiceUnavailable
	case platform.IsUpstream(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func RunPass(deliveryService DeliveryService) echo.HandlerFunc {
	return func(c echo.Context) error {
		// A caller hanging up must not cut the pass short.
		summary, err := deliveryService.RunPass(context.WithoutCancel(c.Request().Context()))
		if err == nil {
			return c.JSON(http.StatusOK, passResponse{Success: true, PassSummary: summary})
		}

		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, model.ErrorConfiguration):
			status = http.StatusServiceUnavailable
		case errors.Is(err, model.ErrorPassInProgress):
			status = http.StatusConflict
		default:
			log.Errorf("delivery pass: %+v", err)
		}
		if summary.StartedAt.IsZero() {
			summary.StartedAt = time.Now().UTC()
		}
		return c.JSON(status, passResponse{Error: err.Error(), PassSummary: summary})
	}
}
