package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"reprosign/internal/app"
	"reprosign/internal/types"
)

const authorityHeader = "X-Authority-Token"

type submitRequest struct {
	SourceRef       string            `json:"source_ref"`
	SourceSignature string            `json:"source_signature"`
	RecipeID        string            `json:"recipe_id"`
	RecipeParams    map[string]string `json:"recipe_params,omitempty"`
	QuorumSize      int               `json:"quorum_size,omitempty"`
	MatchThreshold  int               `json:"match_threshold,omitempty"`
}

type submitResponse struct {
	JobID            string                      `json:"job_id"`
	State            types.JobState              `json:"state"`
	Reason           string                      `json:"reason,omitempty"`
	Decision         *types.VerificationDecision `json:"decision,omitempty"`
	SigningRequestID string                      `json:"signing_request_id,omitempty"`
}

func (h handler) submitBuildJob(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.Submit(r.Context(), app.SubmitRequest{
		SourceRef:       req.SourceRef,
		SourceSignature: req.SourceSignature,
		RecipeID:        req.RecipeID,
		RecipeParams:    req.RecipeParams,
		QuorumSize:      req.QuorumSize,
		MatchThreshold:  req.MatchThreshold,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{
		JobID:            res.JobID,
		State:            res.State,
		Reason:           res.Reason,
		Decision:         res.Decision,
		SigningRequestID: res.SigningRequestID,
	})
}

type statusResponse struct {
	Job      types.BuildJob              `json:"job"`
	Decision *types.VerificationDecision `json:"decision,omitempty"`
	Request  *types.SigningRequest       `json:"signing_request,omitempty"`
}

func (h handler) buildJobStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Job: st.Job, Decision: st.Decision, Request: st.Request})
}

func (h handler) buildJobResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.svc.Results(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

type authorizeRequest struct {
	AuthorizerID string `json:"authorizer_id"`
	Decision     string `json:"decision"`
	Digest       string `json:"digest"`
	Proof        string `json:"proof,omitempty"`
}

type authorizeResponse struct {
	State     types.RequestState `json:"state"`
	Approvals int                `json:"approvals"`
	Signature string             `json:"signature,omitempty"`
}

func (h handler) authorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.Authorize(r.Context(), app.AuthorizeRequest{
		RequestID:    mux.Vars(r)["id"],
		AuthorizerID: req.AuthorizerID,
		Decision:     types.VoteDecision(req.Decision),
		Digest:       req.Digest,
		Proof:        req.Proof,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authorizeResponse{
		State: res.State, Approvals: res.Approvals, Signature: res.Signature,
	})
}

func (h handler) finalize(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.FinalizeRequest(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authorizeResponse{
		State: res.State, Approvals: res.Approvals, Signature: res.Signature,
	})
}

type ceremonyRequest struct {
	Role         string   `json:"role"`
	ParentID     string   `json:"parent_id,omitempty"`
	Participants []string `json:"participants"`
}

func (h handler) keyCeremony(w http.ResponseWriter, r *http.Request) {
	var req ceremonyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := h.svc.KeyCeremony(r.Context(), app.CeremonyRequest{
		Role:         types.KeyRole(req.Role),
		ParentID:     req.ParentID,
		Participants: req.Participants,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h handler) listKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.svc.Keys(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (h handler) revokeKey(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := h.svc.RevokeKey(r.Context(), mux.Vars(r)["id"], q.Get("reason"), q["participant"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(types.KeyStateRevoked)})
}

type suspendRequest struct {
	ArtifactID string `json:"artifact_id"`
	Reason     string `json:"reason"`
}

func (h handler) suspend(w http.ResponseWriter, r *http.Request) {
	var req suspendRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := h.svc.Suspend(r.Context(), app.SuspendRequest{
		ArtifactID:     req.ArtifactID,
		Reason:         req.Reason,
		AuthorityToken: r.Header.Get(authorityHeader),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h handler) lift(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Lift(r.Context(), app.LiftRequest{
		ArtifactID:     mux.Vars(r)["artifact"],
		AuthorityToken: r.Header.Get(authorityHeader),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h handler) suspensionHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.svc.SuspensionHistory(r.Context(), mux.Vars(r)["artifact"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h handler) auditRange(w http.ResponseWriter, r *http.Request) {
	from, to, ok := auditWindow(w, r)
	if !ok {
		return
	}
	entries, err := h.svc.AuditRange(r.Context(), app.AuditRangeRequest{FromSeq: from, ToSeq: to})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type auditVerifyResponse struct {
	Entries int    `json:"entries"`
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
}

func (h handler) auditVerify(w http.ResponseWriter, r *http.Request) {
	from, to, ok := auditWindow(w, r)
	if !ok {
		return
	}
	count, err := h.svc.VerifyAuditChain(r.Context(), from, to)
	resp := auditVerifyResponse{Entries: count, Valid: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func auditWindow(w http.ResponseWriter, r *http.Request) (uint64, uint64, bool) {
	parse := func(name string) (uint64, bool) {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			return 0, true
		}
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Message: name + " must be a sequence number",
				Code:    http.StatusBadRequest,
			})
			return 0, false
		}
		return v, true
	}
	from, ok := parse("from")
	if !ok {
		return 0, 0, false
	}
	to, ok := parse("to")
	if !ok {
		return 0, 0, false
	}
	return from, to, true
}

func (h handler) healthz(w http.ResponseWriter, r *http.Request) {
	if _, _, err := h.svc.Audit.Head(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
