package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/khoji/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/khoji/backend/internal/identity"
	"github.com/MarcoPoloResearchLab/khoji/backend/internal/search"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const userIDContextKey = "khoji_user_id"

var (
	errMissingSearcher      = errors.New("searcher dependency required")
	errMissingIdentityStore = errors.New("identity store dependency required")
	errMissingTokenManager  = errors.New("token manager dependency required")
)

type Searcher interface {
	Search(ctx context.Context, params search.Params) ([]search.PersonRecord, error)
}

type IdentityStore interface {
	SignupConfirmed(name, email, password, confirmation string) (identity.Account, error)
	Signup(name, email, password string) (identity.Account, error)
	Login(email, password string) (identity.Account, error)
	Logout()
	CurrentUser() (identity.Account, bool)
}

type SessionTokenManager interface {
	IssueSessionToken(ctx context.Context, account identity.Account) (string, int64, error)
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
	CookieName() string
}

type Dependencies struct {
	Searcher       Searcher
	Identity       IdentityStore
	TokenManager   SessionTokenManager
	Logger         *zap.Logger
	SearchLimiter  *rate.Limiter
	AllowedOrigins []string
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Searcher == nil {
		return nil, errMissingSearcher
	}
	if deps.Identity == nil {
		return nil, errMissingIdentityStore
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		searcher: deps.Searcher,
		identity: deps.Identity,
		tokens:   deps.TokenManager,
		limiter:  deps.SearchLimiter,
		logger:   logger,
	}

	router.GET("/healthz", handler.handleHealthz)
	router.POST("/api/search", handler.handleSearch)

	router.POST("/auth/signup", handler.handleSignup)
	router.POST("/auth/login", handler.handleLogin)
	router.POST("/auth/logout", handler.handleLogout)
	router.GET("/auth/session", handler.handleSession)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/auth/me", handler.handleMe)

	return router, nil
}

// corsMiddleware allows credentials only for an explicit origin list; a wildcard
// origin is served without them since browsers reject that pairing.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	origins := make([]string, 0, len(allowedOrigins))
	allowAll := false
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		switch trimmed {
		case "":
			continue
		case "*":
			allowAll = true
		default:
			origins = append(origins, trimmed)
		}
	}

	config := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if allowAll || len(origins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
		config.AllowCredentials = true
	}
	return cors.New(config)
}

type httpHandler struct {
	searcher Searcher
	identity IdentityStore
	tokens   SessionTokenManager
	limiter  *rate.Limiter
	logger   *zap.Logger
}

func (h *httpHandler) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type searchResponsePayload struct {
	Results  []search.PersonRecord `json:"results"`
	Buckets  search.ResultSet      `json:"buckets"`
	Total    int                   `json:"total"`
	Bucketed int                   `json:"bucketed"`
}

func (h *httpHandler) handleSearch(c *gin.Context) {
	var params search.Params
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, errorPayload(search.KindInvalidRequest, search.MessageInvalidRequest))
		return
	}
	if strings.TrimSpace(params.Query()) == "" {
		c.JSON(http.StatusBadRequest, errorPayload(search.KindInvalidRequest, search.MessageInvalidRequest))
		return
	}
	if h.limiter != nil && !h.limiter.Allow() {
		h.logger.Info("search throttled locally")
		c.JSON(http.StatusTooManyRequests, errorPayload(search.KindRateLimited, search.MessageRateLimited))
		return
	}

	records, err := h.searcher.Search(c.Request.Context(), params)
	if err != nil {
		var searchErr *search.Error
		if !errors.As(err, &searchErr) {
			h.logger.Error("search failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "search_failed", "message": search.UserMessage(err)})
			return
		}
		c.JSON(statusForSearchError(searchErr.Kind), errorPayload(searchErr.Kind, search.UserMessage(err)))
		return
	}

	buckets := search.Bucket(records)
	c.JSON(http.StatusOK, searchResponsePayload{
		Results:  records,
		Buckets:  buckets,
		Total:    len(records),
		Bucketed: buckets.Total(),
	})
}

func statusForSearchError(kind search.Kind) int {
	switch kind {
	case search.KindInvalidRequest:
		return http.StatusBadRequest
	case search.KindRequestTimeout:
		return http.StatusGatewayTimeout
	case search.KindServiceNotFound:
		return http.StatusServiceUnavailable
	case search.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func errorPayload(kind search.Kind, message string) gin.H {
	return gin.H{"error": string(kind), "message": message}
}

type signupRequestPayload struct {
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	ConfirmPassword *string `json:"confirm_password"`
}

type loginRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponsePayload struct {
	User        identity.Account `json:"user"`
	AccessToken string           `json:"access_token"`
	ExpiresIn   int64            `json:"expires_in"`
	TokenType   string           `json:"token_type"`
}

type sessionStatePayload struct {
	Authenticated bool              `json:"authenticated"`
	User          *identity.Account `json:"user"`
}

func (h *httpHandler) handleSignup(c *gin.Context) {
	var request signupRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	var (
		account identity.Account
		err     error
	)
	if request.ConfirmPassword != nil {
		account, err = h.identity.SignupConfirmed(request.Name, request.Email, request.Password, *request.ConfirmPassword)
	} else {
		account, err = h.identity.Signup(request.Name, request.Email, request.Password)
	}
	if err != nil {
		h.respondIdentityError(c, err)
		return
	}
	h.respondWithSession(c, account)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	account, err := h.identity.Login(request.Email, request.Password)
	if err != nil {
		h.respondIdentityError(c, err)
		return
	}
	h.respondWithSession(c, account)
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	h.identity.Logout()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.tokens.CookieName(), "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleSession(c *gin.Context) {
	account, ok := h.identity.CurrentUser()
	if !ok {
		c.JSON(http.StatusOK, sessionStatePayload{Authenticated: false})
		return
	}
	c.JSON(http.StatusOK, sessionStatePayload{Authenticated: true, User: &account})
}

func (h *httpHandler) handleMe(c *gin.Context) {
	account, ok := h.identity.CurrentUser()
	if !ok || account.ID != c.GetString(userIDContextKey) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": account})
}

func (h *httpHandler) respondWithSession(c *gin.Context, account identity.Account) {
	token, expiresIn, err := h.tokens.IssueSessionToken(c.Request.Context(), account)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.tokens.CookieName(), token, int(expiresIn), "/", "", false, true)
	c.JSON(http.StatusOK, sessionResponsePayload{
		User:        account,
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) respondIdentityError(c *gin.Context, err error) {
	var validationErr *identity.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": validationErr.Message})
	case errors.Is(err, identity.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials", "message": identity.MessageInvalidCredentials})
	default:
		h.logger.Error("identity operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "identity_failed"})
	}
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.tokens.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, claims.Subject)
	c.Next()
}
