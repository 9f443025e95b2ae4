package app

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/group-grader/internal/ctxutil"
	"github.com/Spok95/group-grader/internal/service"
)

// API — JSON-обёртка над движком. Логика только в service.
type API struct {
	svc      *service.Services
	auth     *Auth
	log      *zap.Logger
	loc      *time.Location
	teamSize int
}

type APIConfig struct {
	Auth     *Auth
	Location *time.Location
	// TeamSize — размер команды по умолчанию для redistribute.
	TeamSize int
}

func NewAPI(svc *service.Services, log *zap.Logger, cfg APIConfig) *API {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.TeamSize <= 0 {
		cfg.TeamSize = 5
	}
	return &API{svc: svc, auth: cfg.Auth, log: log, loc: cfg.Location, teamSize: cfg.TeamSize}
}

func createdBy(r *http.Request) *int64 {
	id, ok := ctxutil.IdentityFrom(r.Context())
	if !ok {
		return nil
	}
	uid := id.UserID
	return &uid
}
