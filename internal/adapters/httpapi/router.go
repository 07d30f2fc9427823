package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/kvetinski/bank/internal/auth"
	"github.com/kvetinski/bank/internal/telemetry"
)

type RouterOptions struct {
	Verifier    auth.Verifier
	Metrics     *telemetry.Metrics
	Logger      *zap.Logger
	ServiceName string
}

// NewRouter wires the account routes behind Basic authentication.
// /health stays unauthenticated for probes.
func NewRouter(srv *Server, opts RouterOptions) *gin.Engine {
	if opts.ServiceName == "" {
		opts.ServiceName = "bank-service"
	}

	r := gin.New()
	r.Use(
		RequestID(),
		Observe(opts.Metrics, opts.Logger),
		Recovery(opts.Logger),
		otelgin.Middleware(opts.ServiceName),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	accounts := r.Group("/accounts", BasicAuth(opts.Verifier))
	{
		accounts.POST("", srv.CreateAccount)
		accounts.GET("", srv.ListAccounts)
		accounts.GET("/:id", srv.GetAccount)
		accounts.PUT("/:id", srv.UpdateAccount)
		accounts.DELETE("/:id", srv.DeleteAccount)
	}

	return r
}
