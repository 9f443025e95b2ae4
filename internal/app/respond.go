package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Spok95/group-grader/internal/apperr"
)

type problem struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, problem{Code: code, Error: msg})
}

func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindInvariant, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError — ответ по таксономии apperr. Внутренние ошибки наружу не раскрываем.
func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	msg := err.Error()
	if e, ok := apperr.As(err); ok && status == http.StatusServiceUnavailable {
		msg = e.Msg
	}
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeProblem(w, status, apperr.Code(err), msg)
}

var errBadJSON = errors.New("bad json")

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errBadJSON
	}
	return nil
}

func badRequest(w http.ResponseWriter, msg string) {
	writeProblem(w, http.StatusBadRequest, apperr.ErrInvalidInput.Code, msg)
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}
