package apihttp

import (
	"net/http"
	"strings"

	"mediashare/internal/domain"
	"mediashare/internal/usecase"
)

type addTitleRequest struct {
	TMDBID       int64            `json:"tmdb_id"`
	TMDBType     domain.TitleType `json:"tmdb_type"`
	FileIDs      []string         `json:"file_ids"`
	SeasonNumber int              `json:"season_number"`
}

// titlePatchRequest mirrors domain.TitlePatch; absent fields stay untouched.
type titlePatchRequest struct {
	Title      *string  `json:"title"`
	Year       *string  `json:"year"`
	Rating     *float64 `json:"rating"`
	Plot       *string  `json:"plot"`
	PosterPath *string  `json:"poster_path"`
	TrailerURL *string  `json:"trailer_url"`
	IMDBID     *string  `json:"imdb_id"`
}

type titleRef struct {
	TMDBID   int64            `json:"tmdb_id"`
	TMDBType domain.TitleType `json:"tmdb_type"`
}

type sendAllRequest struct {
	RestartAfter *titleRef `json:"restart_after"`
}

func (s *Server) adminAvailable(w http.ResponseWriter) bool {
	if s.admin == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "admin api not configured")
		return false
	}
	return true
}

// handleAdminTitles serves GET (list) and POST (add) on /api/admin/tmdb.
func (s *Server) handleAdminTitles(w http.ResponseWriter, r *http.Request) {
	if !s.adminAvailable(w) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		page, err := parsePage(q.Get("page"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		kind, err := parseTitleType(q.Get("type"), "")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		result, err := s.admin.ListTitles(r.Context(), usecase.AdminTitleQuery{
			Search: q.Get("search"),
			Type:   kind,
			Page:   page,
		})
		if err != nil {
			writeUseCaseError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case http.MethodPost:
		var body addTitleRequest
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		rec, err := s.admin.AddTitle(r.Context(), usecase.AddTitleRequest{
			TMDBID:       body.TMDBID,
			TMDBType:     body.TMDBType,
			FileIDs:      body.FileIDs,
			SeasonNumber: body.SeasonNumber,
		})
		if err != nil {
			writeUseCaseError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)

	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleAdminTitleByID dispatches the /api/admin/tmdb/ subtree:
//
//	POST   send
//	POST   send-all
//	GET    {id}/seasons
//	GET    {id}/{type}
//	PUT    {id}/{type}
//	DELETE {id}/{type}
func (s *Server) handleAdminTitleByID(w http.ResponseWriter, r *http.Request) {
	if !s.adminAvailable(w) {
		return
	}
	parts := pathParts(r.URL.Path, "/api/admin/tmdb/")
	switch {
	case len(parts) == 1 && parts[0] == "send":
		s.handleAdminSendTitle(w, r)
		return
	case len(parts) == 1 && parts[0] == "send-all":
		s.handleAdminSendAll(w, r)
		return
	case len(parts) != 2:
		http.NotFound(w, r)
		return
	}

	tmdbID, err := parseID(parts[0])
	if err != nil || tmdbID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid tmdb id")
		return
	}

	if parts[1] == "seasons" {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		seasons, err := s.admin.Seasons(r.Context(), tmdbID)
		if err != nil {
			writeUseCaseError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]domain.Season{"seasons": seasons})
		return
	}

	kind, err := parseTitleType(parts[1], "")
	if err != nil || kind == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "tmdb_type must be movie or tv")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := s.admin.Title(r.Context(), tmdbID, kind)
		if err != nil {
			writeUseCaseError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)

	case http.MethodPut:
		var body titlePatchRequest
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		patch := domain.TitlePatch{
			Title:      body.Title,
			Year:       body.Year,
			Rating:     body.Rating,
			Plot:       body.Plot,
			PosterPath: body.PosterPath,
			TrailerURL: body.TrailerURL,
			IMDBID:     body.IMDBID,
		}
		if err := s.admin.UpdateTitle(r.Context(), tmdbID, kind, patch); err != nil {
			writeUseCaseError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "updated"})

	case http.MethodDelete:
		if err := s.admin.DeleteTitle(r.Context(), tmdbID, kind); err != nil {
			writeUseCaseError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "deleted"})

	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (s *Server) handleAdminSendTitle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	var body titleRef
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if body.TMDBID <= 0 || !body.TMDBType.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_request", "tmdb_id and tmdb_type are required")
		return
	}
	if err := s.admin.SendTitle(r.Context(), body.TMDBID, body.TMDBType); err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "sent"})
}

func (s *Server) handleAdminSendAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	var body sendAllRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}
	var restart *domain.TitleLink
	if body.RestartAfter != nil {
		if body.RestartAfter.TMDBID <= 0 || !body.RestartAfter.TMDBType.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_request", "restart_after needs tmdb_id and tmdb_type")
			return
		}
		restart = &domain.TitleLink{TMDBID: body.RestartAfter.TMDBID, TMDBType: body.RestartAfter.TMDBType}
	}
	op, err := s.admin.SendAll(restart)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, op.Status())
}

func (s *Server) handleAdminFiles(w http.ResponseWriter, r *http.Request) {
	if !s.adminAvailable(w) {
		return
	}
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
	unlinked, err := parseBoolQuery(q.Get("no_tmdb_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid no_tmdb_id")
		return
	}
	channelID, err := parseOptionalID(q.Get("channel_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid channel_id")
		return
	}
	result, err := s.admin.ListFiles(r.Context(), usecase.AdminFileQuery{
		Search:    q.Get("search"),
		Unlinked:  unlinked,
		ChannelID: channelID,
		Page:      page,
	})
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type posterRequest struct {
	PosterURL string `json:"poster_url"`
}

// handleAdminFileByID serves DELETE {id} and PUT {id}/poster.
func (s *Server) handleAdminFileByID(w http.ResponseWriter, r *http.Request) {
	if !s.adminAvailable(w) {
		return
	}
	parts := pathParts(r.URL.Path, "/api/admin/files/")
	switch {
	case len(parts) == 1:
		if r.Method != http.MethodDelete {
			writeMethodNotAllowed(w, http.MethodDelete)
			return
		}
		if err := s.admin.DeleteFile(r.Context(), parts[0]); err != nil {
			writeUseCaseError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "deleted"})

	case len(parts) == 2 && parts[1] == "poster":
		if r.Method != http.MethodPut {
			writeMethodNotAllowed(w, http.MethodPut)
			return
		}
		var body posterRequest
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		if err := s.admin.SetPoster(r.Context(), parts[0], body.PosterURL); err != nil {
			writeUseCaseError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "updated"})

	default:
		http.NotFound(w, r)
	}
}

type deleteLinkRequest struct {
	Link string `json:"link"`
}

func (s *Server) handleAdminDeleteLink(w http.ResponseWriter, r *http.Request) {
	if !s.adminAvailable(w) {
		return
	}
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	var body deleteLinkRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(body.Link) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "link is required")
		return
	}
	if err := s.admin.DeleteLink(r.Context(), body.Link); err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "deleted"})
}

func (s *Server) handleAdminChannels(w http.ResponseWriter, r *http.Request) {
	if !s.adminAvailable(w) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		channels, err := s.admin.ListChannels(r.Context())
		if err != nil {
			writeUseCaseError(w, err)
			return
		}
		if channels == nil {
			channels = []domain.Channel{}
		}
		writeJSON(w, http.StatusOK, channels)

	case http.MethodPost:
		var body domain.Channel
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		body.Name = strings.TrimSpace(body.Name)
		if err := s.admin.AddChannel(r.Context(), body); err != nil {
			writeUseCaseError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, body)

	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleAdminChannelByID(w http.ResponseWriter, r *http.Request) {
	if !s.adminAvailable(w) {
		return
	}
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w, http.MethodDelete)
		return
	}
	parts := pathParts(r.URL.Path, "/api/admin/channels/")
	if len(parts) != 1 {
		http.NotFound(w, r)
		return
	}
	channelID, err := parseID(parts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid channel id")
		return
	}
	if err := s.admin.RemoveChannel(r.Context(), channelID); err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "removed"})
}

// handleAdminUser serves POST {id}/block and POST {id}/unblock.
func (s *Server) handleAdminUser(w http.ResponseWriter, r *http.Request) {
	if !s.adminAvailable(w) {
		return
	}
	parts := pathParts(r.URL.Path, "/api/admin/users/")
	if len(parts) != 2 || (parts[1] != "block" && parts[1] != "unblock") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	userID, err := parseID(parts[0])
	if err != nil || userID == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid user id")
		return
	}
	blocked := parts[1] == "block"
	if err := s.admin.SetBlocked(r.Context(), userID, blocked); err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: parts[1] + "ed"})
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	if !s.adminAvailable(w) {
		return
	}
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	stats, err := s.admin.Stats(r.Context())
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
