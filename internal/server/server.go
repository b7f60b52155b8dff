package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/atlasgraph/atlas/internal/ai"
	"github.com/atlasgraph/atlas/internal/db"
	"github.com/atlasgraph/atlas/internal/queue"
	mid "github.com/atlasgraph/atlas/internal/server/middleware"
	"github.com/atlasgraph/atlas/internal/util"
	"github.com/atlasgraph/atlas/pkg/graph"
	"github.com/atlasgraph/atlas/pkg/logger"
	"github.com/atlasgraph/atlas/pkg/ner"
	pgxstore "github.com/atlasgraph/atlas/pkg/store/pgx"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	databaseURL := util.GetEnv("DATABASE_URL")
	if err := db.RunMigrations(databaseURL); err != nil {
		logger.Fatal("Failed to run database migrations", "err", err)
	}

	conn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to setup queues", "err", err)
	}

	storage := pgxstore.NewGraphDBStorageWithConnection(conn)
	engine, err := graph.NewEngine(graph.NewEngineParams{
		Store:          storage,
		Extractor:      ner.NewExtractor(ai.BuildRegistry()),
		ParallelChunks: int(util.GetEnvNumeric("PARALLEL_CHUNKS", 4)),
		MaxRetries:     int(util.GetEnvNumeric("EXTRACT_MAX_RETRIES", 3)),
		Threshold:      util.GetEnvNumeric("DEDUPE_THRESHOLD", 0),
	})
	if err != nil {
		logger.Fatal("Failed to create graph engine", "err", err)
	}

	app := &mid.App{
		DBConn: conn,
		Queue:  ch,
		Store:  storage,
		Engine: engine,
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
