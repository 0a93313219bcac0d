package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/rankedtodo/todo-service/internal/config"
	v1 "github.com/rankedtodo/todo-service/internal/delivery/http/v1"
	"github.com/rankedtodo/todo-service/internal/services"
)

func MustListenAndServeHTTP() {
	cfg := config.Global()
	if cfg.Env != config.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	httpCfg := cfg.HTTP

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	registerRoutes(router)

	server := &http.Server{
		Addr:    net.JoinHostPort(httpCfg.Host, httpCfg.Port),
		Handler: router,
	}

	go func() {
		globalLogger.Info().
			Str("host", httpCfg.Host).
			Str("port", httpCfg.Port).
			Msg("setting up http server")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			globalLogger.Error().
				Err(err).
				Msg("failed to listen and serve http")
			panic(err)
		}
	}()

	// Wait for the interrupt signal to gracefully
	// shut down the server with a timeout.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	globalLogger.Info().
		Msg("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout)
	defer cancel()

	err := server.Shutdown(ctx)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to shutdown http server")
		panic(err)
	}
	globalLogger.Info().Msg("shut down http server")
}

func registerRoutes(router gin.IRouter) {
	v1Handler := v1.New(
		globalLogger,
		globalPostgresPool,
		newTokenVerifier(),
		services.NewTaskService(globalLogger, globalPostgresPool),
		services.NewRankService(globalLogger, globalPostgresPool),
	)

	router.GET("/health", v1Handler.HandleHealthCheck)

	todoRouter := router.Group("/todos", v1Handler.HandleAuthMiddleware)
	todoRouter.GET("", v1Handler.HandleGetTasks)
	todoRouter.POST("", v1Handler.HandleCreateTask)
	todoRouter.GET("/stats", v1Handler.HandleGetStats)
	todoRouter.GET("/:id", v1Handler.HandleGetTaskByID)
	todoRouter.PUT("/:id", v1Handler.HandleUpdateTask)
	todoRouter.DELETE("/:id", v1Handler.HandleDeleteTask)

	rankRouter := router.Group("/ranks", v1Handler.HandleAuthMiddleware)
	rankRouter.GET("/info", v1Handler.HandleGetRankInfo)
	rankRouter.GET("/history", v1Handler.HandleGetRankHistory)
	rankRouter.GET("/leaderboard", v1Handler.HandleGetLeaderboard)
}

func newTokenVerifier() services.TokenVerifier {
	authCfg := config.Global().Auth
	if authCfg.VerifyURL != "" {
		globalLogger.Info().
			Str("verify_url", authCfg.VerifyURL).
			Msg("using remote token verifier")
		return services.NewRemoteTokenVerifier(globalLogger, authCfg.VerifyURL, authCfg.VerifyTimeout)
	}

	if authCfg.JWTSigningKey == "" {
		globalLogger.Error().Msg("no token verifier configured")
		panic(errors.New("either AUTH_VERIFY_URL or AUTH_JWT_SIGNING_KEY must be set"))
	}

	globalLogger.Info().Msg("using local jwt token verifier")
	return services.NewJWTTokenVerifier(globalLogger, authCfg.JWTIssuer, []byte(authCfg.JWTSigningKey))
}
