package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/authplane/authplane/internal/apperr"
	"github.com/authplane/authplane/internal/app"
	"github.com/authplane/authplane/internal/cqrs"
	"github.com/authplane/authplane/internal/middleware"
	"github.com/authplane/authplane/internal/server/httperr"
	"github.com/authplane/authplane/internal/services/token"
	"github.com/authplane/authplane/internal/telemetry"
)

// Handlers binds the HTTP surface to the bus and the token service.
type Handlers struct {
	app         *app.App
	validator   *RequestValidator
	authMetrics *telemetry.AuthMetrics
}

func NewHandlers(a *app.App) (*Handlers, error) {
	validator, err := NewRequestValidator()
	if err != nil {
		return nil, err
	}
	authMetrics, err := telemetry.NewAuthMetrics()
	if err != nil {
		return nil, err
	}
	return &Handlers{app: a, validator: validator, authMetrics: authMetrics}, nil
}

// decode unmarshals the body into an untyped map and validates it against
// the named schema.
func (h *Handlers) decode(r *http.Request, schema string) (map[string]any, error) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, apperr.BadRequest("malformed JSON body: %v", err)
	}
	if err := h.validator.Validate(schema, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, apperr.BadRequest("id must be an integer, got %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func uidOf(r *http.Request) string {
	if p, ok := middleware.PrincipalFrom(r.Context()); ok {
		return p.UID
	}
	return ""
}

func requestContext(r *http.Request) token.RequestContext {
	return token.RequestContext{
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
		RequestID: chimiddleware.GetReqID(r.Context()),
	}
}

// --- auth ---

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	body, err := h.decode(r, "login")
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	identifier, _ := body["identifier"].(string)
	password, _ := body["password"].(string)

	start := time.Now()
	pair, events, err := h.app.TokenSvc.PasswordLogin(r.Context(), identifier, password, requestContext(r))
	h.authMetrics.RecordAuth(r.Context(), "password", err == nil, float64(time.Since(start).Microseconds())/1000.0)
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	if err := h.app.Outbox.Emit(r.Context(), events...); err != nil {
		httperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *Handlers) refresh(w http.ResponseWriter, r *http.Request) {
	body, err := h.decode(r, "refresh")
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	refreshToken, _ := body["refreshToken"].(string)

	start := time.Now()
	pair, events, err := h.app.TokenSvc.Refresh(r.Context(), refreshToken, requestContext(r))
	h.authMetrics.RecordAuth(r.Context(), "refresh", err == nil, float64(time.Since(start).Microseconds())/1000.0)
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	if err := h.app.Outbox.Emit(r.Context(), events...); err != nil {
		httperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *Handlers) signOut(w http.ResponseWriter, r *http.Request) {
	body, err := h.decode(r, "refresh")
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	refreshToken, _ := body["refreshToken"].(string)

	events, err := h.app.TokenSvc.SignOut(r.Context(), refreshToken)
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	if err := h.app.Outbox.Emit(r.Context(), events...); err != nil {
		httperr.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- policies ---

func (h *Handlers) createPolicy(w http.ResponseWriter, r *http.Request) {
	body, err := h.decode(r, "policy")
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	out, err := h.app.Bus.DispatchCommandRaw(r.Context(), cqrs.CmdPolicyCreate, map[string]any{
		"policy": body,
		"uid":    uidOf(r),
	})
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) deletePolicy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	if _, err := h.app.Bus.DispatchCommand(r.Context(), cqrs.CmdPolicyDelete, &cqrs.PolicyDelete{ID: id, UID: uidOf(r)}); err != nil {
		httperr.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) batchPolicies(w http.ResponseWriter, r *http.Request) {
	body, err := h.decode(r, "policy_batch")
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	body["uid"] = uidOf(r)
	if _, err := h.app.Bus.DispatchCommandRaw(r.Context(), cqrs.CmdPolicyBatch, body); err != nil {
		httperr.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) pagePolicies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.app.Bus.DispatchQuery(r.Context(), cqrs.QryPagePolicies, &cqrs.PagePolicies{
		Current: queryInt(r, "current"),
		Size:    queryInt(r, "size"),
		Ptype:   q.Get("ptype"),
		Subject: q.Get("subject"),
		Object:  q.Get("object"),
		Action:  q.Get("action"),
		Domain:  q.Get("domain"),
	})
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getPolicy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	out, err := h.app.PolicySvc.GetPolicy(r.Context(), id)
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// --- relations ---

func (h *Handlers) createRelation(w http.ResponseWriter, r *http.Request) {
	body, err := h.decode(r, "relation")
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	out, err := h.app.Bus.DispatchCommandRaw(r.Context(), cqrs.CmdRelationCreate, map[string]any{
		"relation": body,
		"uid":      uidOf(r),
	})
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) deleteRelation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	if _, err := h.app.Bus.DispatchCommand(r.Context(), cqrs.CmdRelationDelete, &cqrs.RelationDelete{ID: id, UID: uidOf(r)}); err != nil {
		httperr.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) pageRelations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.app.Bus.DispatchQuery(r.Context(), cqrs.QryPageRelations, &cqrs.PageRelations{
		Current:      queryInt(r, "current"),
		Size:         queryInt(r, "size"),
		ChildSubject: q.Get("childSubject"),
		ParentRole:   q.Get("parentRole"),
		Domain:       q.Get("domain"),
	})
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getRelation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	out, err := h.app.PolicySvc.GetRelation(r.Context(), id)
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// --- model versions ---

func (h *Handlers) createDraft(w http.ResponseWriter, r *http.Request) {
	body, err := h.decode(r, "model_draft")
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	body["uid"] = uidOf(r)
	out, err := h.app.Bus.DispatchCommandRaw(r.Context(), cqrs.CmdModelDraft, body)
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) updateDraft(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	body, err := h.decode(r, "model_draft")
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	body["id"] = id
	body["uid"] = uidOf(r)
	out, err := h.app.Bus.DispatchCommandRaw(r.Context(), cqrs.CmdModelDraftEdit, body)
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) publishModel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	if _, err := h.app.Bus.DispatchCommand(r.Context(), cqrs.CmdModelPublish, &cqrs.ModelPublish{ID: id, UID: uidOf(r)}); err != nil {
		httperr.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) rollbackModel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	if _, err := h.app.Bus.DispatchCommand(r.Context(), cqrs.CmdModelRollback, &cqrs.ModelRollback{ID: id, UID: uidOf(r)}); err != nil {
		httperr.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) pageModels(w http.ResponseWriter, r *http.Request) {
	out, err := h.app.Bus.DispatchQuery(r.Context(), cqrs.QryPageModelVersions, &cqrs.PageModelVersions{
		Current: queryInt(r, "current"),
		Size:    queryInt(r, "size"),
		Status:  r.URL.Query().Get("status"),
	})
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getModel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	out, err := h.app.Bus.DispatchQuery(r.Context(), cqrs.QryModelVersion, &cqrs.ModelVersionDetail{ID: id})
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) activeModel(w http.ResponseWriter, r *http.Request) {
	out, err := h.app.Bus.DispatchQuery(r.Context(), cqrs.QryActiveModel, &cqrs.ActiveModel{})
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) diffModels(w http.ResponseWriter, r *http.Request) {
	sourceID, err := strconv.ParseInt(r.URL.Query().Get("source"), 10, 64)
	if err != nil {
		httperr.WriteError(w, apperr.BadRequest("source must be a version id"))
		return
	}
	targetID, err := strconv.ParseInt(r.URL.Query().Get("target"), 10, 64)
	if err != nil {
		httperr.WriteError(w, apperr.BadRequest("target must be a version id"))
		return
	}
	out, err := h.app.Bus.DispatchQuery(r.Context(), cqrs.QryModelVersionDiff, &cqrs.ModelVersionDiff{SourceID: sourceID, TargetID: targetID})
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// --- roles, users, admin ---

func (h *Handlers) roleTopology(w http.ResponseWriter, r *http.Request) {
	out, err := h.app.Bus.DispatchQuery(r.Context(), cqrs.QryRoleTopology, &cqrs.RoleTopology{Domain: r.URL.Query().Get("domain")})
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) verifyEmail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httperr.WriteError(w, err)
		return
	}
	if _, err := h.app.Bus.DispatchCommand(r.Context(), cqrs.CmdUserVerifyEmail, &cqrs.UserVerifyEmail{UserID: id, UID: uidOf(r)}); err != nil {
		httperr.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) reloadEnforcer(w http.ResponseWriter, r *http.Request) {
	ok := h.app.Coordinator.Reload(r.Context())
	h.app.Metrics.RecordReload(r.Context(), ok)
	writeJSON(w, http.StatusOK, map[string]bool{"reloaded": ok})
}
