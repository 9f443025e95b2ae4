package app

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Spok95/group-grader/internal/apperr"
	"github.com/Spok95/group-grader/internal/ctxutil"
	"github.com/Spok95/group-grader/internal/models"
	"github.com/Spok95/group-grader/internal/service"
)

func (a *API) meRoutes(r chi.Router) {
	r.Get("/pending", a.pending)
	r.Get("/history", a.history)
	r.Post("/evaluations", a.submitEvaluation)
}

type pendingResponse struct {
	Period *models.Period `json:"period"`
	Teams  []models.Team  `json:"teams"`
}

func (a *API) pending(w http.ResponseWriter, r *http.Request) {
	id, _ := ctxutil.IdentityFrom(r.Context())
	p, teams, err := a.svc.Evaluations.PendingTeams(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if teams == nil {
		teams = []models.Team{}
	}
	writeJSON(w, http.StatusOK, pendingResponse{Period: p, Teams: teams})
}

func (a *API) history(w http.ResponseWriter, r *http.Request) {
	id, _ := ctxutil.IdentityFrom(r.Context())
	var periodID *int64
	if v := r.URL.Query().Get("period_id"); v != "" {
		pid, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			badRequest(w, "bad period_id")
			return
		}
		periodID = &pid
	}
	list, err := a.svc.Teams.History(r.Context(), id.UserID, periodID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type submitRequest struct {
	TeamID int64 `json:"team_id"`
	// PeriodID 0 — текущий активный период.
	PeriodID int64             `json:"period_id"`
	Scores   map[int64]float64 `json:"scores"`
	Comments string            `json:"comments"`
}

func (a *API) submitEvaluation(w http.ResponseWriter, r *http.Request) {
	id, _ := ctxutil.IdentityFrom(r.Context())
	var req submitRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.PeriodID == 0 {
		p, err := a.svc.Periods.Active(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if p == nil {
			writeError(w, apperr.ErrPeriodNotActive)
			return
		}
		req.PeriodID = p.ID
	}
	e, err := a.svc.Evaluations.Submit(r.Context(), service.Submission{
		EvaluatorID: id.UserID,
		TeamID:      req.TeamID,
		PeriodID:    req.PeriodID,
		Scores:      req.Scores,
		Comments:    req.Comments,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}
