package adminhttp

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"gosha-bot/internal/analytics"
	"gosha-bot/internal/auth"
	"gosha-bot/internal/history"
	"gosha-bot/internal/logging"
	"gosha-bot/internal/storage"
)

// Handler serves the read-mostly admin surface: health, daily stats,
// conversation dumps and the runtime admin list.
type Handler struct {
	store    history.Store
	recorder storage.Recorder
	admins   *auth.Service
	token    string
	now      func() time.Time
}

func NewHandler(store history.Store, recorder storage.Recorder, admins *auth.Service, token string) *Handler {
	return &Handler{store: store, recorder: recorder, admins: admins, token: token, now: time.Now}
}

// Router builds the gin engine with recovery, request logging and routes.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.GinMiddleware(logging.L()))
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/", h.requireToken())
	{
		api.GET("/stats", h.Stats)
		api.GET("/conversations/:id", h.GetConversation)
		api.GET("/admins", h.ListAdmins)
	}
	// Without a token the surface is read-only.
	if h.token == "" {
		l := logging.L()
		l.Warn().Msg("admin http token not set, mutating routes disabled")
		return
	}
	api.DELETE("/conversations/:id", h.DeleteConversation)
	api.PUT("/admins/:username", h.PutAdmin)
	api.DELETE("/admins/:username", h.DeleteAdmin)
}

// requireToken checks a bearer token when one is configured.
func (h *Handler) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.token == "" {
			c.Next()
			return
		}
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// Stats returns the daily analytics for ?date=YYYY-MM-DD (UTC, default today).
func (h *Handler) Stats(c *gin.Context) {
	l := logging.Ctx(c.Request.Context())
	day := h.now().UTC()
	if s := c.Query("date"); s != "" {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		day = d
	}
	events, err := h.recorder.LoadInteractions()
	if err != nil {
		l.Error().Err(err).Msg("failed to load journal")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load journal"})
		return
	}
	stats := analytics.AnalyzeDailyLogs(events, day)
	if c.Query("format") == "text" {
		c.String(http.StatusOK, stats.GenerateReportSummary())
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetConversation(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	msgs, err := h.store.Get(c.Request.Context(), chatID)
	if err != nil {
		l := logging.Ctx(c.Request.Context())
		l.Error().Err(err).Int64(logging.FieldChatID, chatID).Msg("failed to read conversation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read conversation"})
		return
	}
	if msgs == nil {
		msgs = []history.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID, "messages": msgs})
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	l := logging.Ctx(c.Request.Context())
	if err := h.store.Delete(c.Request.Context(), chatID); err != nil {
		l.Error().Err(err).Int64(logging.FieldChatID, chatID).Msg("failed to delete conversation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete conversation"})
		return
	}
	l.Warn().Int64(logging.FieldChatID, chatID).Msg("conversation deleted via admin http")
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListAdmins(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"admins": h.admins.List()})
}

func (h *Handler) PutAdmin(c *gin.Context) {
	username := auth.Normalize(c.Param("username"))
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username required"})
		return
	}
	if err := h.admins.Upsert(auth.Admin{Username: username, AddedBy: "http"}); err != nil {
		l := logging.Ctx(c.Request.Context())
		l.Error().Err(err).Msg("failed to save admin")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save admin"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": username})
}

func (h *Handler) DeleteAdmin(c *gin.Context) {
	if err := h.admins.Remove(c.Param("username")); err != nil {
		l := logging.Ctx(c.Request.Context())
		l.Error().Err(err).Msg("failed to remove admin")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove admin"})
		return
	}
	c.Status(http.StatusNoContent)
}

func chatIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat id must be an integer"})
		return 0, false
	}
	return id, true
}

// Serve runs the admin server on addr until ctx is done.
func Serve(ctx context.Context, addr string, h *Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		l := logging.L()
		l.Info().Str("addr", addr).Msg("admin http listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
