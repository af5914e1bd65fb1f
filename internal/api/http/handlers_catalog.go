package apihttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"mediashare/internal/domain"
	"mediashare/internal/usecase"
)

func (s *Server) handleMediaList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	q := r.URL.Query()
	page, err := parsePage(q.Get("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	category, err := parseTitleType(q.Get("category"), "")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "category must be movie or tv")
		return
	}

	result, err := s.catalog.ListTitles(r.Context(), domain.TitleQuery{
		Search:     q.Get("search"),
		Category:   category,
		Genre:      strings.TrimSpace(q.Get("genre")),
		Cast:       strings.TrimSpace(q.Get("cast")),
		Director:   strings.TrimSpace(q.Get("director")),
		Sort:       domain.SortMode(strings.TrimSpace(q.Get("sort"))),
		Pagination: domain.Pagination{Page: page},
	})
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleMediaByID serves /api/media/{tmdb_id} and /api/media/{tmdb_id}/season/{n}.
func (s *Server) handleMediaByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	parts := pathParts(r.URL.Path, "/api/media/")
	if len(parts) != 1 && (len(parts) != 3 || parts[1] != "season") {
		http.NotFound(w, r)
		return
	}
	tmdbID, err := parseID(parts[0])
	if err != nil || tmdbID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid tmdb id")
		return
	}
	page, err := parsePage(r.URL.Query().Get("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if len(parts) == 3 {
		season, err := strconv.Atoi(parts[2])
		if err != nil || season < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid season number")
			return
		}
		files, err := s.catalog.SeasonFiles(r.Context(), tmdbID, season, page)
		if err != nil {
			writeUseCaseError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, files)
		return
	}

	kind, err := parseTitleType(r.URL.Query().Get("tmdb_type"), domain.TitleMovie)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	view, err := s.catalog.TitleDetails(r.Context(), tmdbID, kind, page)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleOthers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	q := r.URL.Query()
	page, err := parsePage(q.Get("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	var oldest bool
	switch strings.ToLower(strings.TrimSpace(q.Get("sort"))) {
	case "", "recent", "newest":
	case "oldest":
		oldest = true
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "sort must be recent or oldest")
		return
	}

	result, err := s.catalog.Others(r.Context(), usecase.OthersQuery{
		Search:     q.Get("search"),
		Oldest:     oldest,
		Pagination: domain.Pagination{Page: page},
	})
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	parts := pathParts(r.URL.Path, "/api/file/")
	if len(parts) != 1 {
		http.NotFound(w, r)
		return
	}
	rec, err := s.catalog.File(r.Context(), parts[0])
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type entityResponse struct {
	Name string `json:"name"`
}

// handleEntity serves /api/{genres|stars|directors}/{id}.
func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	parts := pathParts(r.URL.Path, "/api/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	e, err := s.catalog.Entity(r.Context(), domain.EntityCategory(parts[0]), parts[1])
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entityResponse{Name: e.Name})
}

type sendFileRequest struct {
	FileID string `json:"file_id"`
}

func (s *Server) handleSendFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	var body sendFileRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(body.FileID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "file_id is required")
		return
	}
	if err := s.access.SendFile(r.Context(), userIDFrom(r.Context()), strings.TrimSpace(body.FileID)); err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "File sent successfully"})
}

type authorizeRequest struct {
	UserID int64 `json:"user_id"`
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	var body authorizeRequest
	if err := decodeJSON(r, &body); err != nil || body.UserID == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid user id")
		return
	}
	token, err := s.access.Login(r.Context(), body.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "authorization required, verify through the bot first")
			return
		}
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type meResponse struct {
	UserID    int64  `json:"user_id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
	Admin     bool   `json:"admin"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	userID := userIDFrom(r.Context())
	u, err := s.access.Me(r.Context(), userID)
	if err != nil && !(errors.Is(err, domain.ErrNotFound) && s.access.IsAdmin(userID)) {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		UserID:    userID,
		FirstName: u.FirstName,
		Username:  u.Username,
		Admin:     s.access.IsAdmin(userID),
	})
}

type storeQueryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	ID    string `json:"id"`
	Query string `json:"query"`
}

func (s *Server) handleStoreQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	var body storeQueryRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	id, err := s.catalog.StoreQuery(body.Query)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, queryResponse{ID: id, Query: s.catalog.ResolveQuery(id)})
}

func (s *Server) handleResolveQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	parts := pathParts(r.URL.Path, "/api/query/")
	if len(parts) != 1 {
		http.NotFound(w, r)
		return
	}
	text := s.catalog.ResolveQuery(parts[0])
	if text == "" {
		writeError(w, http.StatusNotFound, "not_found", "query expired or unknown")
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{ID: parts[0], Query: text})
}
