// controllers/wallet_controller.go
package controllers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"

	"github.com/jakejheack/pony/models"
	"github.com/jakejheack/pony/services"
	"github.com/jakejheack/pony/websocket"
)

const balanceCacheTTL = 10 * time.Second

// WalletController is the REST façade over the ledger core. It validates
// the request shape; the ledger service owns every balance rule.
type WalletController struct {
	ledger *services.LedgerService
	redis  *redis.Client
	hub    *websocket.Hub
}

func NewWalletController(ledger *services.LedgerService, redisClient *redis.Client, hub *websocket.Hub) *WalletController {
	return &WalletController{ledger: ledger, redis: redisClient, hub: hub}
}

// GetBalance returns the caller's coins and shareable unique id. Balance
// display tolerates a few seconds of staleness, so reads go through a
// short-lived Redis cache when one is configured.
func (wc *WalletController) GetBalance(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	userID := c.QueryParam("userId")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "User ID required",
		})
	}

	if wc.redis != nil {
		if cached, err := wc.redis.Get(ctx, balanceKey(userID)).Result(); err == nil {
			var info models.BalanceInfo
			if json.Unmarshal([]byte(cached), &info) == nil {
				return c.JSON(http.StatusOK, models.Response{
					Status:  http.StatusOK,
					Message: "Balance retrieved",
					Data:    info,
				})
			}
		}
	}

	info, err := wc.ledger.GetBalance(ctx, userID)
	if err != nil {
		return respondError(c, err)
	}

	if wc.redis != nil {
		if payload, err := json.Marshal(info); err == nil {
			wc.redis.Set(ctx, balanceKey(userID), payload, balanceCacheTTL)
		}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Balance retrieved",
		Data:    info,
	})
}

// Transfer moves coins to the account addressed by its unique id.
func (wc *WalletController) Transfer(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var req models.TransferRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Missing required fields",
		})
	}

	result, err := wc.ledger.Transfer(ctx, req.SenderID, req.ReceiverUniqueID, req.Amount)
	if err != nil {
		return respondError(c, err)
	}

	if wc.redis != nil {
		wc.redis.Del(ctx, balanceKey(req.SenderID), balanceKey(result.Transaction.ReceiverID.Hex()))
	}

	if wc.hub != nil && result.Transaction != nil {
		if err := wc.hub.NotifyCoinsReceived(result.Transaction.ReceiverID, result.Transaction); err == nil {
			log.Printf("Notified user %s of incoming transfer", result.Transaction.ReceiverID.Hex())
		}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Transfer successful",
		Data:    result,
	})
}

// GetHistory lists the caller's transactions, newest first. Pass the
// oldest createdAt of the previous page as ?before= to continue.
func (wc *WalletController) GetHistory(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	userID := c.QueryParam("userId")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "User ID required",
		})
	}

	opts := models.HistoryOptions{}
	if before := c.QueryParam("before"); before != "" {
		parsed, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid before timestamp",
			})
		}
		opts.Before = parsed
	}

	history, err := wc.ledger.GetHistory(ctx, userID, opts)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "History retrieved",
		Data:    history,
	})
}

func balanceKey(userID string) string {
	return "wallet:balance:" + userID
}
