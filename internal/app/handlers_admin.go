package app

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Spok95/group-grader/internal/export"
	"github.com/Spok95/group-grader/internal/models"
	"github.com/Spok95/group-grader/internal/service"
)

func (a *API) adminRoutes(r chi.Router) {
	r.Route("/groups", func(r chi.Router) {
		r.Get("/", a.listGroups)
		r.Post("/", a.createGroup)
		r.Put("/{id}", a.updateGroup)
		r.Delete("/{id}", a.deleteGroup)
		r.Get("/{id}/students", a.groupStudents)
		r.Post("/{id}/students", a.registerStudent)
		r.Get("/{id}/teams", a.groupTeams)
		r.Post("/{id}/redistribute", a.redistribute)
	})
	r.Route("/students/{id}", func(r chi.Router) {
		r.Post("/move", a.moveStudent)
		r.Post("/active", a.setStudentActive)
	})
	r.Route("/teams/{id}", func(r chi.Router) {
		r.Get("/", a.getTeam)
		r.Put("/", a.renameTeam)
		r.Post("/members/{userId}", a.addMember)
		r.Delete("/members/{userId}", a.removeMember)
	})
	r.Route("/criteria", func(r chi.Router) {
		r.Get("/", a.listCriteria)
		r.Post("/", a.createCriterion)
		r.Patch("/{id}", a.updateCriterion)
		r.Post("/{id}/activate", a.toggleCriterion(true))
		r.Post("/{id}/deactivate", a.toggleCriterion(false))
	})
	r.Route("/periods", func(r chi.Router) {
		r.Get("/", a.listPeriods)
		r.Post("/", a.createPeriod)
		r.Delete("/{id}", a.deletePeriod)
		r.Post("/{id}/activate", a.periodTransition((*service.PeriodService).Activate))
		r.Post("/{id}/deactivate", a.periodTransition((*service.PeriodService).Deactivate))
		r.Post("/{id}/cancel", a.periodTransition((*service.PeriodService).Cancel))
	})
	r.Route("/reports/{id}", func(r chi.Router) {
		r.Get("/", a.periodReport)
		r.Get("/export.csv", a.exportCSV)
		r.Get("/export.xlsx", a.exportXLSX)
	})
}

// groups

type groupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	MaxStudents *int    `json:"max_students"`
	IsActive    *bool   `json:"is_active"`
}

func (a *API) listGroups(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.Groups.List(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) createGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	in := service.GroupInput{CreatedBy: createdBy(r)}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.MaxStudents != nil {
		in.MaxStudents = *req.MaxStudents
	}
	g, err := a.svc.Groups.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (a *API) updateGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "bad id")
		return
	}
	var req groupRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	g, err := a.svc.Groups.Update(r.Context(), id, service.GroupUpdate{
		Name: req.Name, Description: req.Description, MaxStudents: req.MaxStudents, IsActive: req.IsActive,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (a *API) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "bad id")
		return
	}
	if err := a.svc.Groups.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) groupStudents(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "bad id")
		return
	}
	list, err := a.svc.Groups.Students(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) registerStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "bad id")
		return
	}
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	u, err := a.svc.Groups.RegisterStudent(r.Context(), service.StudentInput{Name: req.Name, Email: req.Email, GroupID: id})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (a *API) moveStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "bad id")
		return
	}
	var req struct {
		GroupID int64 `json:"group_id"`
	}
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	u, err := a.svc.Groups.MoveStudent(r.Context(), id, req.GroupID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) setStudentActive(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "bad id")
		return
	}
	var req struct {
		IsActive bool `json:"is_active"`
	}
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	u, err := a.svc.Groups.SetStudentActive(r.Context(), id, req.IsActive)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// teams

func (a *API) groupTeams(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "bad id")
		return
	}
	list, err := a.svc.Teams.ListByGroup(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) redistribute(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "bad id")
		return
	}
	req := struct {
		TeamSize *int `json:"team_size"`
	}{}
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			badRequest(w, err.Error())
			return
		}
	}
	size := a.teamSize
	if req.TeamSize != nil {
		size = *req.TeamSize
	}
	teams, err := a.svc.Teams.Redistribute(r.Context(), id, size, createdBy(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

func (a *API) getTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "bad id")
		return
	}
	t, err := a.svc.Teams.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *API) renameTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "bad id")
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	t, err := a.svc.Teams.Rename(r.Context(), id, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *API) addMember(w http.ResponseWriter, r *http.Request) {
	a.memberOp(w, r, a.svc.Teams.AddMember)
}

func (a *API) removeMember(w http.ResponseWriter, r *http.Request) {
	a.memberOp(w, r, a.svc.Teams.RemoveMember)
}

func (a *API) memberOp(w http.ResponseWriter, r *http.Request, op func(context.Context, int64, int64) (bool, error)) {
	teamID, ok1 := idParam(r, "id")
	userID, ok2 := idParam(r, "userId")
	if !ok1 || !ok2 {
		badRequest(w, "bad id")
		return
	}
	changed, err := op(r.Context(), teamID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

// criteria

type criterionRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Weight      *int    `json:"weight"`
	MaxScore    *int    `json:"max_score"`
	IsActive    *bool   `json:"is_active"`
}

func (a *API) listCriteria(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.Criteria.List(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) createCriterion(w http.ResponseWriter, r *http.Request) {
	var req criterionRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	in := service.CriterionInput{CreatedBy: createdBy(r)}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.Weight != nil {
		in.Weight = *req.Weight
	}
	if req.MaxScore != nil {
		in.MaxScore = *req.MaxScore
	}
	c, err := a.svc.Criteria.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) updateCriterion(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "bad id")
		return
	}
	var req criterionRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	c, err := a.svc.Criteria.Update(r.Context(), id, service.CriterionPatch{
		Name: req.Name, Description: req.Description, Weight: req.Weight, MaxScore: req.MaxScore, IsActive: req.IsActive,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) toggleCriterion(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			badRequest(w, "bad id")
			return
		}
		op := a.svc.Criteria.Deactivate
		if active {
			op = a.svc.Criteria.Activate
		}
		c, err := op(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// periods

func (a *API) listPeriods(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.Periods.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) createPeriod(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string    `json:"name"`
		Description string    `json:"description"`
		StartDate   time.Time `json:"start_date"`
		EndDate     time.Time `json:"end_date"`
		Groups      []int64   `json:"groups"`
	}
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	p, err := a.svc.Periods.Create(r.Context(), service.PeriodInput{
		Name: req.Name, Description: req.Description,
		StartDate: req.StartDate, EndDate: req.EndDate,
		Groups: req.Groups, CreatedBy: createdBy(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) periodTransition(op func(*service.PeriodService, context.Context, int64) (models.Period, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			badRequest(w, "bad id")
			return
		}
		p, err := op(a.svc.Periods, r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func (a *API) deletePeriod(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "bad id")
		return
	}
	if err := a.svc.Periods.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reports

func (a *API) buildReport(w http.ResponseWriter, r *http.Request) (service.PeriodReport, bool) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "bad id")
		return service.PeriodReport{}, false
	}
	rep, err := a.svc.Reports.BuildPeriodReport(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return rep, false
	}
	return rep, true
}

func (a *API) periodReport(w http.ResponseWriter, r *http.Request) {
	if rep, ok := a.buildReport(w, r); ok {
		writeJSON(w, http.StatusOK, rep)
	}
}

func (a *API) exportCSV(w http.ResponseWriter, r *http.Request) {
	rep, ok := a.buildReport(w, r)
	if !ok {
		return
	}
	setAttachment(w, export.ReportFilename(rep.Period.Name, rep.GeneratedAt.In(a.loc), "csv"), "text/csv; charset=utf-8")
	if err := export.WriteReportCSV(w, rep, a.loc); err != nil {
		a.log.Warn("csv export write failed", zap.Error(err))
	}
}

func (a *API) exportXLSX(w http.ResponseWriter, r *http.Request) {
	rep, ok := a.buildReport(w, r)
	if !ok {
		return
	}
	setAttachment(w, export.ReportFilename(rep.Period.Name, rep.GeneratedAt.In(a.loc), "xlsx"),
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := export.WriteXLSX(w, rep, a.loc); err != nil {
		a.log.Warn("xlsx export write failed", zap.Error(err))
	}
}

func setAttachment(w http.ResponseWriter, name, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(name)))
}
