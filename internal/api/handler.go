package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-alert-dispatch/internal/auth"
	"github.com/mr1hm/go-alert-dispatch/internal/dispatch"
	"github.com/mr1hm/go-alert-dispatch/internal/drill"
	"github.com/mr1hm/go-alert-dispatch/internal/feed"
	"github.com/mr1hm/go-alert-dispatch/internal/models"
	"github.com/mr1hm/go-alert-dispatch/internal/repository"
)

// DefaultDrillMethods are used when a drill request names no methods.
var DefaultDrillMethods = []models.DeliveryMethod{models.DeliveryEmail, models.DeliveryPush}

// dispatchTimeout bounds a dispatch once it is detached from its request.
const dispatchTimeout = 5 * time.Minute

// dispatchContext is not cancelled when the client disconnects.
func dispatchContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request.Context()), dispatchTimeout)
}

type Handler struct {
	engine *dispatch.Engine
	drills *drill.Bridge
	store  repository.DrillStore
	feed   *feed.Broadcaster
	authn  *auth.Authenticator
}

func NewHandler(engine *dispatch.Engine, drills *drill.Bridge, store repository.DrillStore, broadcaster *feed.Broadcaster, authn *auth.Authenticator) *Handler {
	return &Handler{
		engine: engine,
		drills: drills,
		store:  store,
		feed:   broadcaster,
		authn:  authn,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	api := r.Group("/api", h.authn.Middleware())
	api.POST("/alerts", h.sendAlert)
	api.GET("/alerts", h.history)
	api.GET("/alerts/active", h.activeAlerts)
	api.GET("/alerts/stream", h.streamAlerts)
	api.GET("/alerts/:id/delivery", h.deliveryStatus)
	api.GET("/alerts/:id/deliveries", h.deliveries)
	api.POST("/drills", h.scheduleDrill)
	api.POST("/drills/:id/notify", h.notifyDrill)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type sendAlertRequest struct {
	Type            string   `json:"type"`
	Severity        string   `json:"severity"`
	Title           string   `json:"title"`
	Message         string   `json:"message"`
	TargetScope     string   `json:"target_scope"`
	CommunityID     string   `json:"community_id"`
	DeliveryMethods []string `json:"delivery_methods"`
	TTLHours        int      `json:"ttl_hours"`
}

func (r sendAlertRequest) intent() models.AlertIntent {
	methods := make([]models.DeliveryMethod, 0, len(r.DeliveryMethods))
	for _, m := range r.DeliveryMethods {
		methods = append(methods, models.DeliveryMethod(strings.ToLower(strings.TrimSpace(m))))
	}
	return models.AlertIntent{
		Type:        models.AlertType(strings.ToLower(r.Type)),
		Severity:    models.AlertSeverity(strings.ToLower(r.Severity)),
		Title:       r.Title,
		Message:     r.Message,
		Scope:       models.TargetScope(strings.ToLower(r.TargetScope)),
		CommunityID: r.CommunityID,
		Methods:     methods,
		TTL:         models.TTLHours(r.TTLHours),
	}
}

func (h *Handler) sendAlert(c *gin.Context) {
	senderID, _ := auth.CurrentSender(c)

	var req sendAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !models.IsAllowedTTLHours(req.TTLHours) {
		writeError(c, &dispatch.ValidationError{
			Field:  "ttl_hours",
			Reason: fmt.Sprintf("must be one of %v", models.AllowedTTLHours),
		})
		return
	}

	ctx, cancel := dispatchContext(c)
	defer cancel()

	id, err := h.engine.ComposeAndSend(ctx, senderID, req.intent())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) history(c *gin.Context) {
	senderID, _ := auth.CurrentSender(c)

	summaries, err := h.engine.History(c.Request.Context(), senderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": toSummaryResponses(summaries)})
}

func (h *Handler) activeAlerts(c *gin.Context) {
	var communityID *string
	if id := c.Query("community_id"); id != "" {
		communityID = &id
	}

	summaries, err := h.engine.ActiveAlerts(c.Request.Context(), communityID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": toSummaryResponses(summaries)})
}

func (h *Handler) deliveryStatus(c *gin.Context) {
	summary, err := h.engine.DeliveryStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) deliveries(c *gin.Context) {
	entries, err := h.engine.Deliveries(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deliveries": toDeliveryResponses(entries)})
}

// streamAlerts pushes every newly issued alert as a server-sent event until
// the client disconnects or the feed closes.
func (h *Handler) streamAlerts(c *gin.Context) {
	id, alerts := h.feed.Subscribe(feed.ForCommunity(c.Query("community_id")))
	defer h.feed.Unsubscribe(id)

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"subscriber": id})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case a, ok := <-alerts:
			if !ok {
				return false
			}
			c.SSEvent("alert", toAlertResponse(a))
			return true
		}
	})
}

type scheduleDrillRequest struct {
	CommunityID        string    `json:"community_id" binding:"required"`
	Title              string    `json:"title" binding:"required"`
	Description        string    `json:"description"`
	Location           string    `json:"location"`
	ScheduledAt        time.Time `json:"scheduled_at" binding:"required"`
	TargetCommunityIDs []string  `json:"target_community_ids"`
	DeliveryMethods    []string  `json:"delivery_methods"`
}

type notifyDrillRequest struct {
	TargetCommunityIDs []string `json:"target_community_ids"`
	DeliveryMethods    []string `json:"delivery_methods"`
}

func drillMethods(raw []string) []models.DeliveryMethod {
	if len(raw) == 0 {
		return DefaultDrillMethods
	}
	return models.ParseDeliveryMethods(strings.Join(raw, ","))
}

func (h *Handler) scheduleDrill(c *gin.Context) {
	senderID, _ := auth.CurrentSender(c)

	var req scheduleDrillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "message": err.Error()})
		return
	}

	d := &models.Drill{
		CommunityID: req.CommunityID,
		OrganizerID: senderID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		ScheduledAt: req.ScheduledAt.UTC().Truncate(time.Millisecond),
	}
	ctx, cancel := dispatchContext(c)
	defer cancel()

	alertIDs, err := h.drills.ScheduleDrill(ctx, d, req.TargetCommunityIDs, drillMethods(req.DeliveryMethods))
	if err != nil {
		writeDrillError(c, d.ID, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": d.ID, "alert_ids": alertIDs})
}

func (h *Handler) notifyDrill(c *gin.Context) {
	senderID, _ := auth.CurrentSender(c)

	var req notifyDrillRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	d, err := h.store.GetDrill(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if d.OrganizerID != senderID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the organizer can notify for this drill"})
		return
	}
	if d.NotificationSent {
		c.JSON(http.StatusOK, gin.H{"id": d.ID, "alert_ids": []string{}, "already_sent": true})
		return
	}

	ctx, cancel := dispatchContext(c)
	defer cancel()

	alertIDs, err := h.drills.NotifyDrillScheduled(ctx, d, req.TargetCommunityIDs, drillMethods(req.DeliveryMethods))
	if err != nil {
		writeDrillError(c, d.ID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": d.ID, "alert_ids": alertIDs})
}

func writeDrillError(c *gin.Context, drillID string, err error) {
	status, body := errorResponse(err)
	if drillID != "" {
		body["drill_id"] = drillID
	}
	c.JSON(status, body)
}

func writeError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	c.JSON(status, body)
}

func errorResponse(err error) (int, gin.H) {
	var vErr *dispatch.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, gin.H{"error": "validation failed", "field": vErr.Field, "message": vErr.Reason}
	case errors.Is(err, drill.ErrInvalidDrill):
		return http.StatusBadRequest, gin.H{"error": "validation failed", "message": err.Error()}
	case errors.Is(err, dispatch.ErrDirectoryUnavailable):
		return http.StatusServiceUnavailable, gin.H{"error": "membership directory unavailable"}
	case errors.Is(err, dispatch.ErrAlertNotFound):
		return http.StatusNotFound, gin.H{"error": "not found"}
	case errors.Is(err, dispatch.ErrPersistence):
		return http.StatusInternalServerError, gin.H{"error": "failed to store alert"}
	default:
		return http.StatusInternalServerError, gin.H{"error": "internal error"}
	}
}
