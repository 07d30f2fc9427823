package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kvetinski/bank/internal/domain"
	accountsvc "github.com/kvetinski/bank/internal/service/account"
)

// errorBody is the JSON shape of every non-empty error response.
type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

type Server struct {
	svc    *accountsvc.Service
	logger *zap.Logger
}

func NewServer(svc *accountsvc.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{svc: svc, logger: logger}
}

func (s *Server) CreateAccount(c *gin.Context) {
	var acc domain.Account
	if err := c.ShouldBindJSON(&acc); err != nil {
		respondError(c, http.StatusBadRequest, "malformed request body")
		return
	}

	created, err := s.svc.Create(c.Request.Context(), acc)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (s *Server) ListAccounts(c *gin.Context) {
	accounts, err := s.svc.GetAll(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, accounts)
}

func (s *Server) GetAccount(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	acc, found, err := s.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !found {
		c.Status(http.StatusNotFound)
		return
	}

	c.JSON(http.StatusOK, acc)
}

func (s *Server) UpdateAccount(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var acc domain.Account
	if err := c.ShouldBindJSON(&acc); err != nil {
		respondError(c, http.StatusBadRequest, "malformed request body")
		return
	}

	updated, found, err := s.svc.Update(c.Request.Context(), id, acc)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !found {
		c.Status(http.StatusNotFound)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (s *Server) DeleteAccount(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := s.svc.Delete(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// parseID rejects segments that are not integers. Zero and negative ids are
// well formed and resolve to 404 like any other unknown id.
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid account id")
		return 0, false
	}

	return id, true
}

func (s *Server) writeError(c *gin.Context, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		respondError(c, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, domain.ErrAccountNotFound):
		c.Status(http.StatusNotFound)
	default:
		s.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err),
		)
		respondError(c, http.StatusInternalServerError, "internal server error")
	}
}

func respondError(c *gin.Context, code int, message string) {
	c.JSON(code, errorBody{StatusCode: code, Message: message})
}
