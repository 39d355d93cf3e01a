package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
)

type contributionJSON struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	TargetAmount    int64  `json:"target_amount"`
	CollectedAmount int64  `json:"collected_amount"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	Status          string `json:"status"`
	AcceptsPayments bool   `json:"accepts_payments"`
}

func toContributionJSON(c *domain.Contribution, now time.Time) contributionJSON {
	return contributionJSON{
		ID:              c.ID,
		Title:           c.Title,
		Description:     c.Description,
		TargetAmount:    c.TargetAmount,
		CollectedAmount: c.CollectedAmount,
		StartDate:       c.StartDate.UTC().Format(time.RFC3339),
		EndDate:         c.EndDate.UTC().Format(time.RFC3339),
		Status:          string(c.Status),
		AcceptsPayments: c.AcceptsPayments(now),
	}
}

// ContributionsList returns all contribution programs with their
// ledger-derived collected totals.
func (a *App) ContributionsList(w http.ResponseWriter, r *http.Request) {
	items, err := a.Contributions.List(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("contribution list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list contributions")
		return
	}
	now := a.clock()
	out := make([]contributionJSON, 0, len(items))
	for i := range items {
		out = append(out, toContributionJSON(&items[i], now))
	}
	a.json(w, http.StatusOK, map[string]any{"items": out})
}

func (a *App) ContributionsGet(w http.ResponseWriter, r *http.Request) {
	c, err := a.Contributions.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if !a.domainError(w, err) {
			a.error(w, http.StatusInternalServerError, "internal", "failed to load contribution")
		}
		return
	}
	a.json(w, http.StatusOK, map[string]any{"contribution": toContributionJSON(c, a.clock())})
}
