package apihttp

import (
	"net/http"
	"strings"

	"mediashare/internal/domain"
	"mediashare/internal/usecase"
)

// rangeRequest names a message range by its first and last message links.
// NotifyChat defaults to the requesting owner's private chat.
type rangeRequest struct {
	StartLink     string `json:"start_link"`
	EndLink       string `json:"end_link"`
	Destination   int64  `json:"destination"`
	LogDuplicates bool   `json:"log_duplicates"`
	NotifyChat    *int64 `json:"notify_chat"`
}

type broadcastRequest struct {
	Link         string `json:"link"`
	FromChatID   int64  `json:"from_chat_id"`
	MessageID    int64  `json:"message_id"`
	Caption      string `json:"caption"`
	NowAvailable bool   `json:"now_available"`
	StatusChat   *int64 `json:"status_chat"`
}

func (s *Server) handleOps(w http.ResponseWriter, r *http.Request) {
	if s.ops == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "operations not configured")
		return
	}
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	ops := s.ops.List()
	if ops == nil {
		ops = []usecase.OperationStatus{}
	}
	writeJSON(w, http.StatusOK, ops)
}

// handleOpByPath starts an operation with POST /api/admin/ops/{kind}, and
// reads or cancels one with GET or DELETE /api/admin/ops/{id}.
func (s *Server) handleOpByPath(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/api/admin/ops/")
	if len(parts) != 1 {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodPost:
		s.startOperation(w, r, usecase.OperationKind(parts[0]))

	case http.MethodGet:
		if s.ops == nil {
			writeError(w, http.StatusNotImplemented, "not_configured", "operations not configured")
			return
		}
		op, err := s.ops.Get(parts[0])
		if err != nil {
			writeUseCaseError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, op.Status())

	case http.MethodDelete:
		if s.ops == nil {
			writeError(w, http.StatusNotImplemented, "not_configured", "operations not configured")
			return
		}
		status, err := s.ops.Cancel(parts[0])
		if err != nil {
			writeUseCaseError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, status)

	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (s *Server) startOperation(w http.ResponseWriter, r *http.Request, kind usecase.OperationKind) {
	ownerChat := userIDFrom(r.Context())

	if kind == usecase.OpBroadcast {
		s.startBroadcast(w, r, ownerChat)
		return
	}
	if s.bulk == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "bulk operations not configured")
		return
	}

	var body rangeRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	rng, err := usecase.ParseRange(body.StartLink, body.EndLink)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	notify := ownerChat
	if body.NotifyChat != nil {
		notify = *body.NotifyChat
	}

	var op *usecase.Operation
	switch kind {
	case usecase.OpIndex:
		op, err = s.bulk.Index(r.Context(), usecase.IndexRequest{
			Range:         rng,
			LogDuplicates: body.LogDuplicates,
			NotifyChat:    notify,
		})
	case usecase.OpCopy:
		if body.Destination == 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "destination is required")
			return
		}
		op, err = s.bulk.Copy(r.Context(), usecase.CopyRequest{
			Source:      rng,
			Destination: body.Destination,
			NotifyChat:  notify,
		})
	case usecase.OpUpdate:
		op, err = s.bulk.Update(r.Context(), rng, notify)
	case usecase.OpDelete:
		op, err = s.bulk.Delete(r.Context(), rng, notify)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, op.Status())
}

func (s *Server) startBroadcast(w http.ResponseWriter, r *http.Request, ownerChat int64) {
	if s.broadcast == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "broadcast not configured")
		return
	}
	var body broadcastRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req := usecase.BroadcastRequest{
		FromChatID:   body.FromChatID,
		MessageID:    body.MessageID,
		Caption:      body.Caption,
		NowAvailable: body.NowAvailable,
		StatusChat:   ownerChat,
	}
	if link := strings.TrimSpace(body.Link); link != "" {
		channelID, messageID, err := domain.ParseMessageLink(link)
		if err != nil {
			writeUseCaseError(w, err)
			return
		}
		req.FromChatID, req.MessageID = channelID, messageID
	}
	if body.StatusChat != nil {
		req.StatusChat = *body.StatusChat
	}
	op, err := s.broadcast.Start(r.Context(), req)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, op.Status())
}
