package api

import (
	"net/http"

	_ "github.com/AlexZinkM/exchange-json-rpc/docs"
	"github.com/AlexZinkM/exchange-json-rpc/internal/metrics"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// Options configures the router
type Options struct {
	AllowRemote bool
	Whitelist   []string
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

// SetupRouter sets up router with handlers
func SetupRouter(methods Caller, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := mux.NewRouter()

	if !opts.AllowRemote {
		r.Use(Whitelist(opts.Whitelist, opts.Logger))
	}

	// Swagger UI
	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)
	}

	r.Handle("/", NewRPCHandler(methods, opts.Logger)).Methods(http.MethodPost)

	return r
}
