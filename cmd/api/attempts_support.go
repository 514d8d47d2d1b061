package main

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/signin/internal/attempts"
	"github.com/yourusername/signin/internal/auth"
	"github.com/yourusername/signin/internal/config"
	"github.com/yourusername/signin/internal/signin"
)

// attemptRecorder は状態遷移の記録と、記録の参照を行います。
type attemptRecorder interface {
	signin.Recorder
	GetRecord(ctx context.Context, attemptID string) (*attempts.Record, error)
}

func setupAttempts(cfg *config.Config, rdb *redis.Client) (*attempts.Manager, error) {
	store := attempts.NewStore(rdb, cfg.AttemptTTL())
	return attempts.NewManager(cfg, store, log.Default())
}

func attemptStatusHandler(recorder attemptRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		attemptID := c.Param("id")
		if strings.TrimSpace(attemptID) == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "attemptId is required",
			})
			return
		}

		record, err := recorder.GetRecord(c.Request.Context(), attemptID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "failed to load the attempt",
			})
			return
		}
		// 他のユーザーの試行は存在しないものとして扱う
		if record == nil || !record.OwnedBy(c.GetString(auth.ContextUserKey)) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "ATTEMPT_NOT_FOUND",
				"message": "attempt does not exist",
			})
			return
		}

		payload := gin.H{
			"attemptId": record.AttemptID,
			"email":     record.Identifier,
			"status":    record.Status,
			"startedAt": record.StartedAt,
			"updatedAt": record.UpdatedAt,
		}
		if record.Terminal() {
			payload["finishedAt"] = record.FinishedAt
		}
		if record.Error != nil {
			payload["error"] = record.Error
		}

		c.JSON(http.StatusOK, payload)
	}
}
