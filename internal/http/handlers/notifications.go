package handlers

import (
	"net/http"
	"time"
)

// NotificationsList returns the caller's most recent notifications.
func (a *App) NotificationsList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	items, err := a.Notifications.ListByUser(r.Context(), userID, queryInt(r.URL.Query().Get("limit"), 50))
	if err != nil {
		a.Logger.Error().Err(err).Msg("notification list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list notifications")
		return
	}

	out := make([]map[string]any, 0, len(items))
	for _, n := range items {
		out = append(out, map[string]any{
			"id":         n.ID,
			"title":      n.Title,
			"message":    n.Message,
			"is_read":    n.IsRead,
			"created_at": n.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": out})
}

// NotificationsMarkRead marks every notification of the caller as read.
func (a *App) NotificationsMarkRead(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if err := a.Notifications.MarkAllRead(r.Context(), userID); err != nil {
		a.Logger.Error().Err(err).Msg("notification mark read failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to update notifications")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
