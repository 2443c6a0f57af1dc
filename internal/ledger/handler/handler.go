// Package handler exposes the attestation ledger over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"veryphy/internal/auth"
	"veryphy/internal/ledger/models"
	"veryphy/internal/platform/middleware"
	dErrors "veryphy/pkg/domain-errors"
	"veryphy/pkg/platform/httputil"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// Service defines the ledger operations the handler fronts.
type Service interface {
	RegisterInstitution(ctx context.Context, inst models.Institution) (models.Institution, error)
	RegisterDegree(ctx context.Context, deg models.Degree) (models.Degree, error)
	RecordVerification(ctx context.Context, rec models.VerificationRecord) (string, error)
	VerifyByHash(ctx context.Context, hash string) (models.VerificationResult, error)
	GetDegree(ctx context.Context, degreeID string) (models.Degree, error)
	RevokeDegree(ctx context.Context, degreeID, reason string) (models.Degree, error)
	BlacklistInstitution(ctx context.Context, institutionID, reason string) (models.Institution, error)
	DegreeHistory(ctx context.Context, degreeID string) ([]models.HistoryEntry, error)
	Stats(ctx context.Context) (models.AggregateStats, error)
}

// Cache holds recent verify-by-hash answers. May be absent.
type Cache interface {
	Get(ctx context.Context, hash string) (models.VerificationResult, error)
	Set(ctx context.Context, hash string, result models.VerificationResult) error
	Invalidate(ctx context.Context, hash string) error
}

// Mirror is the read-optimized projection list queries are served from. May
// be absent.
type Mirror interface {
	UpsertInstitution(ctx context.Context, inst models.Institution) error
	UpsertDegree(ctx context.Context, deg models.Degree) error
	ListInstitutions(ctx context.Context, limit int) ([]models.Institution, error)
	ListDegrees(ctx context.Context, institutionID string, limit int) ([]models.Degree, error)
}

// Extractor derives a degree hash from an uploaded certificate artifact.
type Extractor interface {
	ExtractHash(ctx context.Context, artifact []byte) (string, error)
}

// Handler wires ledger endpoints to the ledger service.
type Handler struct {
	service   Service
	cache     Cache
	mirror    Mirror
	extractor Extractor
	validator middleware.JWTValidator
	logger    *slog.Logger
}

// New constructs a ledger handler. cache and mirror may be nil when the
// deployment runs without Redis or the Postgres projection.
func New(service Service, cache Cache, mirror Mirror, extractor Extractor, validator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		cache:     cache,
		mirror:    mirror,
		extractor: extractor,
		validator: validator,
		logger:    logger,
	}
}

// Register mounts ledger endpoints on the router. Verification lookups and
// aggregate stats are public; everything else requires a bearer token.
func (h *Handler) Register(r chi.Router) {
	r.Get("/verify/{hash}", h.HandleVerifyByHash)
	r.Post("/verify/certificate", h.HandleVerifyCertificate)
	r.Get("/stats", h.HandleStats)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleAdmin))
			r.Post("/institutions", h.HandleRegisterInstitution)
			r.Get("/institutions", h.HandleListInstitutions)
			r.Post("/institutions/{id}/blacklist", h.HandleBlacklistInstitution)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleUniversity, auth.RoleAdmin))
			r.Post("/degrees", h.HandleRegisterDegree)
			r.Get("/degrees", h.HandleListDegrees)
			r.Post("/degrees/{id}/revoke", h.HandleRevokeDegree)
		})

		r.Get("/degrees/{id}/history", h.HandleDegreeHistory)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleEmployer, auth.RoleAdmin))
			r.Post("/verifications", h.HandleRecordVerification)
		})
	})
}

// HandleRegisterInstitution handles POST /institutions.
func (h *Handler) HandleRegisterInstitution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.Decode[registerInstitutionRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	inst, err := h.service.RegisterInstitution(ctx, req.toModel())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.mirrorInstitution(ctx, inst)
	httputil.WriteJSON(w, http.StatusCreated, inst)
}

// HandleRegisterDegree handles POST /degrees. University callers may only
// register degrees for their own institution.
func (h *Handler) HandleRegisterDegree(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.Decode[registerDegreeRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	deg := req.toModel()
	if middleware.GetRole(ctx) == auth.RoleUniversity && deg.InstitutionID != middleware.GetEntityID(ctx) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "cannot register degrees for another institution"))
		return
	}

	deg, err = h.service.RegisterDegree(ctx, deg)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.mirrorDegree(ctx, deg)
	// A prior lookup of this hash may have cached a not-found answer.
	h.dropCached(ctx, deg.Hash)
	httputil.WriteJSON(w, http.StatusCreated, deg)
}

// HandleVerifyByHash handles GET /verify/{hash}.
func (h *Handler) HandleVerifyByHash(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hash := chi.URLParam(r, "hash")
	if hash == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "hash is required"))
		return
	}

	if h.cache != nil {
		if result, err := h.cache.Get(ctx, hash); err == nil {
			httputil.WriteJSON(w, http.StatusOK, result)
			return
		}
	}

	result, err := h.service.VerifyByHash(ctx, hash)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, hash, result); err != nil {
			h.logger.WarnContext(ctx, "verification cache write failed",
				"request_id", middleware.GetRequestID(ctx),
				"error", err,
			)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleVerifyCertificate handles POST /verify/certificate: the artifact is
// reduced to its degree hash, then verified like a plain hash lookup.
func (h *Handler) HandleVerifyCertificate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.Decode[certificateVerifyRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	hash, err := h.extractor.ExtractHash(ctx, req.Artifact)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.VerifyByHash(ctx, hash)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleRecordVerification handles POST /verifications.
func (h *Handler) HandleRecordVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.Decode[recordVerificationRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec := req.toModel()
	if rec.EmployerID == "" {
		rec.EmployerID = middleware.GetEntityID(ctx)
	}

	id, err := h.service.RecordVerification(ctx, rec)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, idResponse{ID: id})
}

// HandleRevokeDegree handles POST /degrees/{id}/revoke. University callers
// may only revoke degrees issued by their own institution.
func (h *Handler) HandleRevokeDegree(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	degreeID := chi.URLParam(r, "id")
	req, err := httputil.Decode[lifecycleRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if middleware.GetRole(ctx) == auth.RoleUniversity {
		existing, err := h.service.GetDegree(ctx, degreeID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		if existing.InstitutionID != middleware.GetEntityID(ctx) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "cannot revoke another institution's degree"))
			return
		}
	}

	deg, err := h.service.RevokeDegree(ctx, degreeID, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.mirrorDegree(ctx, deg)
	// Cached VALID answers must not outlive the revocation.
	h.dropCached(ctx, deg.Hash)
	httputil.WriteJSON(w, http.StatusOK, deg)
}

// HandleBlacklistInstitution handles POST /institutions/{id}/blacklist.
func (h *Handler) HandleBlacklistInstitution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	institutionID := chi.URLParam(r, "id")
	req, err := httputil.Decode[lifecycleRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	inst, err := h.service.BlacklistInstitution(ctx, institutionID, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.mirrorInstitution(ctx, inst)
	httputil.WriteJSON(w, http.StatusOK, inst)
}

// HandleDegreeHistory handles GET /degrees/{id}/history.
func (h *Handler) HandleDegreeHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	degreeID := chi.URLParam(r, "id")

	versions, err := h.service.DegreeHistory(ctx, degreeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, historyResponse{DegreeID: degreeID, Versions: versions})
}

// HandleStats handles GET /stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// HandleListInstitutions handles GET /institutions, served from the mirror.
func (h *Handler) HandleListInstitutions(w http.ResponseWriter, r *http.Request) {
	if h.mirror == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeSubstrate, "listing requires the read mirror"))
		return
	}
	institutions, err := h.mirror.ListInstitutions(r.Context(), listLimit(r))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeInternal, "mirror query failed", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listInstitutionsResponse{Institutions: institutions})
}

// HandleListDegrees handles GET /degrees. University callers see only their
// own institution's degrees.
func (h *Handler) HandleListDegrees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.mirror == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeSubstrate, "listing requires the read mirror"))
		return
	}

	institutionID := r.URL.Query().Get("universityId")
	if middleware.GetRole(ctx) == auth.RoleUniversity {
		institutionID = middleware.GetEntityID(ctx)
	}

	degrees, err := h.mirror.ListDegrees(ctx, institutionID, listLimit(r))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeInternal, "mirror query failed", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listDegreesResponse{Degrees: degrees})
}

// mirrorInstitution projects inst into the read mirror. Failures are logged
// and swallowed; the ledger write already committed.
func (h *Handler) mirrorInstitution(ctx context.Context, inst models.Institution) {
	if h.mirror == nil {
		return
	}
	if err := h.mirror.UpsertInstitution(ctx, inst); err != nil {
		h.logger.ErrorContext(ctx, "mirror upsert failed",
			"request_id", middleware.GetRequestID(ctx),
			"institution_id", inst.ID,
			"error", err,
		)
	}
}

func (h *Handler) mirrorDegree(ctx context.Context, deg models.Degree) {
	if h.mirror == nil {
		return
	}
	if err := h.mirror.UpsertDegree(ctx, deg); err != nil {
		h.logger.ErrorContext(ctx, "mirror upsert failed",
			"request_id", middleware.GetRequestID(ctx),
			"degree_id", deg.ID,
			"error", err,
		)
	}
}

func (h *Handler) dropCached(ctx context.Context, hash string) {
	if h.cache == nil || hash == "" {
		return
	}
	if err := h.cache.Invalidate(ctx, hash); err != nil {
		h.logger.WarnContext(ctx, "cache invalidation failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
	}
}

func listLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}
