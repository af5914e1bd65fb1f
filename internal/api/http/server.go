package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"mediashare/internal/domain"
	"mediashare/internal/usecase"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type CatalogService interface {
	ListTitles(ctx context.Context, q domain.TitleQuery) (domain.Page[domain.TitleRecord], error)
	TitleDetails(ctx context.Context, tmdbID int64, kind domain.TitleType, page int) (usecase.TitleDetailsView, error)
	SeasonFiles(ctx context.Context, tmdbID int64, season, page int) (domain.Page[domain.MediaRecord], error)
	Others(ctx context.Context, q usecase.OthersQuery) (domain.Page[domain.MediaRecord], error)
	File(ctx context.Context, id string) (domain.MediaRecord, error)
	Entity(ctx context.Context, category domain.EntityCategory, id string) (domain.Entity, error)
	StoreQuery(text string) (string, error)
	ResolveQuery(id string) string
}

type AccessService interface {
	Authenticate(ctx context.Context, header string) (int64, error)
	Login(ctx context.Context, userID int64) (string, error)
	IsAdmin(userID int64) bool
	Me(ctx context.Context, userID int64) (domain.User, error)
	SendFile(ctx context.Context, userID int64, fileID string) error
	Register(ctx context.Context, u domain.User) (domain.User, bool, error)
	Redeem(ctx context.Context, tokenID string, userID int64) error
	VerifyLink(ctx context.Context, userID int64) (string, error)
}

type AdminService interface {
	ListTitles(ctx context.Context, q usecase.AdminTitleQuery) (domain.Page[domain.TitleRecord], error)
	Title(ctx context.Context, tmdbID int64, kind domain.TitleType) (domain.TitleRecord, error)
	Seasons(ctx context.Context, tmdbID int64) ([]domain.Season, error)
	AddTitle(ctx context.Context, req usecase.AddTitleRequest) (domain.TitleRecord, error)
	UpdateTitle(ctx context.Context, tmdbID int64, kind domain.TitleType, patch domain.TitlePatch) error
	DeleteTitle(ctx context.Context, tmdbID int64, kind domain.TitleType) error
	ListFiles(ctx context.Context, q usecase.AdminFileQuery) (domain.Page[domain.MediaRecord], error)
	SetPoster(ctx context.Context, fileID, posterURL string) error
	DeleteFile(ctx context.Context, fileID string) error
	DeleteLink(ctx context.Context, link string) error
	ListChannels(ctx context.Context) ([]domain.Channel, error)
	AddChannel(ctx context.Context, c domain.Channel) error
	RemoveChannel(ctx context.Context, channelID int64) error
	SetBlocked(ctx context.Context, userID int64, blocked bool) error
	Stats(ctx context.Context) (domain.Stats, error)
	SendTitle(ctx context.Context, tmdbID int64, kind domain.TitleType) error
	SendAll(restartAfter *domain.TitleLink) (*usecase.Operation, error)
}

type BulkService interface {
	Index(ctx context.Context, req usecase.IndexRequest) (*usecase.Operation, error)
	Copy(ctx context.Context, req usecase.CopyRequest) (*usecase.Operation, error)
	Update(ctx context.Context, r usecase.MessageRange, notifyChat int64) (*usecase.Operation, error)
	Delete(ctx context.Context, r usecase.MessageRange, notifyChat int64) (*usecase.Operation, error)
}

type BroadcastService interface {
	Start(ctx context.Context, req usecase.BroadcastRequest) (*usecase.Operation, error)
}

type OperationRegistry interface {
	Get(id string) (*usecase.Operation, error)
	Cancel(id string) (usecase.OperationStatus, error)
	List() []usecase.OperationStatus
}

// Ingestor accepts media events from the webhook.
type Ingestor interface {
	Enqueue(ev domain.RawEvent, opts usecase.EnqueueOptions) error
}

type ChannelLister interface {
	List(ctx context.Context) ([]domain.Channel, error)
}

// Replier sends bot replies to private chats.
type Replier interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
}

type Server struct {
	catalog        CatalogService
	access         AccessService
	admin          AdminService
	bulk           BulkService
	broadcast      BroadcastService
	ops            OperationRegistry
	ingest         Ingestor
	channels       ChannelLister
	replier        Replier
	webhookSecret  string
	logChannelID   int64
	allowedOrigins []string
	rateRPS        float64
	rateBurst      int
	logger         *slog.Logger
	handler        http.Handler
}

type ServerOption func(*Server)

func WithAdmin(svc AdminService) ServerOption {
	return func(s *Server) {
		s.admin = svc
	}
}

func WithBulk(svc BulkService) ServerOption {
	return func(s *Server) {
		s.bulk = svc
	}
}

func WithBroadcast(svc BroadcastService) ServerOption {
	return func(s *Server) {
		s.broadcast = svc
	}
}

func WithOperations(reg OperationRegistry) ServerOption {
	return func(s *Server) {
		s.ops = reg
	}
}

// WithWebhook enables POST /telegram/webhook. Channel posts from channels
// returned by channels are enqueued into ingest; private /start commands
// are answered through replier. An empty secret disables the header check.
func WithWebhook(ingest Ingestor, channels ChannelLister, replier Replier, secret string) ServerOption {
	return func(s *Server) {
		s.ingest = ingest
		s.channels = channels
		s.replier = replier
		s.webhookSecret = secret
	}
}

// WithLogChannel reports new users to chatID.
func WithLogChannel(chatID int64) ServerOption {
	return func(s *Server) {
		s.logChannelID = chatID
	}
}

// WithAllowedOrigins configures the CORS allowed origins whitelist.
// When empty (default), any origin is permitted.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithRateLimit sets the global token bucket. Non-positive values keep the
// defaults.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 {
			s.rateRPS = rps
		}
		if burst > 0 {
			s.rateBurst = burst
		}
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(catalog CatalogService, access AccessService, opts ...ServerOption) *Server {
	s := &Server{
		catalog:   catalog,
		access:    access,
		rateRPS:   100,
		rateBurst: 200,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/media", s.requireUser(s.handleMediaList))
	mux.HandleFunc("/api/media/", s.requireUser(s.handleMediaByID))
	mux.HandleFunc("/api/others", s.requireUser(s.handleOthers))
	mux.HandleFunc("/api/file/", s.requireUser(s.handleFile))
	mux.HandleFunc("/api/genres/", s.requireUser(s.handleEntity))
	mux.HandleFunc("/api/stars/", s.requireUser(s.handleEntity))
	mux.HandleFunc("/api/directors/", s.requireUser(s.handleEntity))
	mux.HandleFunc("/api/send_file", s.requireUser(s.handleSendFile))
	mux.HandleFunc("/api/user/me", s.requireUser(s.handleMe))
	mux.HandleFunc("/api/query", s.requireUser(s.handleStoreQuery))
	mux.HandleFunc("/api/query/", s.requireUser(s.handleResolveQuery))
	mux.HandleFunc("/api/authorize", s.handleAuthorize)

	mux.HandleFunc("/api/admin/tmdb", s.requireOwner(s.handleAdminTitles))
	mux.HandleFunc("/api/admin/tmdb/", s.requireOwner(s.handleAdminTitleByID))
	mux.HandleFunc("/api/admin/files", s.requireOwner(s.handleAdminFiles))
	mux.HandleFunc("/api/admin/files/", s.requireOwner(s.handleAdminFileByID))
	mux.HandleFunc("/api/admin/delete-link", s.requireOwner(s.handleAdminDeleteLink))
	mux.HandleFunc("/api/admin/channels", s.requireOwner(s.handleAdminChannels))
	mux.HandleFunc("/api/admin/channels/", s.requireOwner(s.handleAdminChannelByID))
	mux.HandleFunc("/api/admin/users/", s.requireOwner(s.handleAdminUser))
	mux.HandleFunc("/api/admin/stats", s.requireOwner(s.handleAdminStats))
	mux.HandleFunc("/api/admin/ops", s.requireOwner(s.handleOps))
	mux.HandleFunc("/api/admin/ops/", s.requireOwner(s.handleOpByPath))

	mux.HandleFunc("/telegram/webhook", s.handleWebhook)
	mux.Handle("/metrics", promhttp.Handler())

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "mediashare",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics"
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateRPS, s.rateBurst, metricsMiddleware(corsMiddleware(s.allowedOrigins, traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// pathParts splits the request path below prefix into its non-empty segments.
func pathParts(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
