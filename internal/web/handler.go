// Package web はサインインフォームを HTTP で操作するための Gin ハンドラーを提供します。
package web

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/signin/internal/auth"
	"github.com/yourusername/signin/internal/credentials"
	"github.com/yourusername/signin/internal/signin"
)

const sessionKeyForm = "form_id"

// SessionEstablisher はログイン成功後に Cookie セッションを確立します。
type SessionEstablisher interface {
	EstablishSession(c *gin.Context, s *signin.Session) (string, error)
}

// Handler はフォームの表示・入力・送信・破棄を扱います。
type Handler struct {
	registry    *signin.Registry
	establisher SessionEstablisher
	logger      *log.Logger
}

// NewHandler は Handler を作成します。establisher は nil でも構いません。
func NewHandler(registry *signin.Registry, establisher SessionEstablisher, logger *log.Logger) (*Handler, error) {
	if registry == nil {
		return nil, errors.New("registry is nil")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		registry:    registry,
		establisher: establisher,
		logger:      logger,
	}, nil
}

// Register はルートを登録します。
func (h *Handler) Register(r gin.IRouter) {
	forms := r.Group("/forms")
	forms.POST("", h.Mount)
	forms.GET("/:id", h.Get)
	forms.PATCH("/:id/fields", h.ChangeField)
	forms.POST("/:id/submit", h.Submit)
	forms.DELETE("/:id", h.Dispose)
}

type changeFieldRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

// Mount は新しいフォームを作成します。
func (h *Handler) Mount(c *gin.Context) {
	form, err := h.registry.Mount()
	if err != nil {
		h.logger.Printf("failed to mount form: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "failed to create the form",
		})
		return
	}

	session := sessions.Default(c)
	session.Set(sessionKeyForm, form.ID())
	if err := session.Save(); err != nil {
		h.logger.Printf("failed to save form id to session: %v", err)
	}

	c.JSON(http.StatusCreated, gin.H{
		"formId":      form.ID(),
		"state":       form.Controller().State(),
		"submitLabel": form.SubmitLabel(),
	})
}

// Get はフォームの現在状態を返します。
func (h *Handler) Get(c *gin.Context) {
	form, ok := h.lookup(c)
	if !ok {
		return
	}
	status := form.Controller().Status()
	c.JSON(http.StatusOK, gin.H{
		"formId":      form.ID(),
		"state":       status.State,
		"reason":      status.Reason,
		"attemptId":   status.AttemptID,
		"busy":        form.Busy(),
		"submitLabel": form.SubmitLabel(),
		"email":       form.Identifier(),
		"errors":      form.Errors().Messages(),
	})
}

// ChangeField は入力欄の値を更新し、その欄の検証結果を返します。
func (h *Handler) ChangeField(c *gin.Context) {
	form, ok := h.lookup(c)
	if !ok {
		return
	}
	var req changeFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "send field and value as JSON",
		})
		return
	}
	field, ok := credentials.ParseField(req.Field)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_FIELD",
			"message": "field must be email or password",
		})
		return
	}

	errs, err := form.Change(field, req.Value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_FIELD",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"errors": errs.Messages(),
	})
}

// Submit はフォームを送信します。本文に email/password があればそれを入力値として使い、
// 無ければ ChangeField で入力済みの値を送信します。
func (h *Handler) Submit(c *gin.Context) {
	form, ok := h.lookup(c)
	if !ok {
		return
	}

	// 受け付けた送信はクライアントが切断しても最後まで実行する
	ctx := auth.WithClientIP(context.WithoutCancel(c.Request.Context()), c.ClientIP())

	var (
		out signin.Outcome
		err error
	)
	if hasBody(c.Request) {
		var creds credentials.Credentials
		if bindErr := c.ShouldBindJSON(&creds); bindErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "send email and password as JSON",
			})
			return
		}
		out, err = form.SubmitValues(ctx, creds)
	} else {
		out, err = form.Submit(ctx)
	}

	var submitErr *signin.SubmitError
	switch {
	case errors.Is(err, signin.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"code":   "VALIDATION_FAILED",
			"state":  out.State,
			"errors": out.Errors.Messages(),
		})
	case errors.Is(err, signin.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{
			"code":    "INVALID_STATE",
			"message": "the form cannot be submitted right now",
			"state":   out.State,
		})
	case errors.As(err, &submitErr):
		_, notes := form.Effects().Drain()
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":          submitErr.Code,
			"state":         out.State,
			"reason":        submitErr.Reason,
			"attemptId":     out.AttemptID,
			"notifications": notes,
		})
	case err != nil:
		h.logger.Printf("form %s submit failed: %v", form.ID(), err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "failed to submit the form",
		})
	default:
		h.succeed(c, form, out)
	}
}

func (h *Handler) succeed(c *gin.Context, form *signin.Form, out signin.Outcome) {
	redirect, notes := form.Effects().Drain()
	payload := gin.H{
		"state":         out.State,
		"attemptId":     out.AttemptID,
		"redirect":      redirect,
		"notifications": notes,
	}
	if out.Session != nil {
		payload["expiresAt"] = out.Session.ExpiresAt
		if h.establisher != nil {
			csrf, err := h.establisher.EstablishSession(c, out.Session)
			if err != nil {
				// フォームは Succeeded で再送信できないため破棄し、作り直しを促す
				h.logger.Printf("form %s: failed to establish cookie session: %v", form.ID(), err)
				h.registry.Dispose(form.ID())
				c.JSON(http.StatusInternalServerError, gin.H{
					"code":    signin.CodeSessionSaveFailed,
					"message": "signed in, but the browser session could not be stored; mount a new form and sign in again",
					"state":   out.State,
					"remount": true,
				})
				return
			}
			payload["csrfToken"] = csrf
		}
	}
	c.JSON(http.StatusOK, payload)
}

// Dispose はフォームを破棄します。画面を離れるときに呼びます。
func (h *Handler) Dispose(c *gin.Context) {
	id := c.Param("id")
	if !h.registry.Dispose(id) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "FORM_NOT_FOUND",
			"message": "form does not exist",
		})
		return
	}

	session := sessions.Default(c)
	if current, _ := session.Get(sessionKeyForm).(string); current == id {
		session.Delete(sessionKeyForm)
		_ = session.Save()
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) lookup(c *gin.Context) (*signin.Form, bool) {
	form, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "FORM_NOT_FOUND",
			"message": "form does not exist",
		})
		return nil, false
	}
	return form, true
}

func hasBody(r *http.Request) bool {
	return r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0
}
