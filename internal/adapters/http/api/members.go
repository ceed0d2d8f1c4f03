package api

import (
	"net/http"
	"strings"

	"github.com/okian/vorell/internal/domain/model"
)

// MemberHandler handles member signup, profile reads, likes and withdrawal.
type MemberHandler struct {
	deps MemberDependencies
}

// NewMemberHandler creates a new member handler.
func NewMemberHandler(deps MemberDependencies) *MemberHandler {
	return &MemberHandler{deps: deps}
}

type memberRequest struct {
	Nick string `json:"nick"`
	Type string `json:"type"`
}

func (r memberRequest) input() model.MemberInput {
	return model.MemberInput{
		Nick: r.Nick,
		Type: model.MemberType(strings.ToUpper(strings.TrimSpace(r.Type))),
	}
}

// HandleCreate handles POST /members requests.
func (h *MemberHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_member"
	var req memberRequest
	if err := decode(op, r, &req); err != nil {
		writeServiceError(w, op, err)
		return
	}
	m, err := h.deps.CreateMember(r.Context(), req.input())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// HandleGet handles GET /members/{id} requests. A signed-in caller records a view.
func (h *MemberHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_member"
	m, err := h.deps.GetMember(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleLike handles POST /members/{id}/like requests.
func (h *MemberHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	const op = "api.like_member"
	actorID, err := requireActor(op, r)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	m, err := h.deps.LikeMember(r.Context(), actorID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleWithdraw handles DELETE /members/{id} requests. Members can only
// withdraw themselves.
func (h *MemberHandler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	const op = "api.withdraw_member"
	actorID, err := requireActor(op, r)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	m, err := h.deps.WithdrawMember(r.Context(), actorID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
