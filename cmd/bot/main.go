// Command bot runs the Telegram front-end for the hosting panels: it wires
// configuration, the local SQLite store, the upstream gateway client and the
// long-poll update loop, plus an optional ops HTTP listener for health and
// metrics.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nexoplatform/nexo-bot/internal/bot"
	"github.com/nexoplatform/nexo-bot/internal/config"
	"github.com/nexoplatform/nexo-bot/internal/gateway"
	"github.com/nexoplatform/nexo-bot/internal/repo"
	"github.com/nexoplatform/nexo-bot/internal/sysutil"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	sysutil.SetLogLevel(cfg.LogLevel)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("opening database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrating database failed")
	}

	gw := gateway.New(gateway.Options{
		PanelAPIURL: cfg.PanelAPIURL(),
		PteroAPIURL: cfg.PteroAPIURL(),
		Timeout:     cfg.Gateway.HTTPTimeout,
		RPS:         cfg.Gateway.RPS,
		Burst:       cfg.Gateway.Burst,
		Logger:      log.With().Str("component", "gateway").Logger(),
	})

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to Telegram failed")
	}
	log.Info().Str("username", api.Self.UserName).Msg("authorized on Telegram")

	b := bot.New(bot.Options{
		API:               api,
		DB:                db,
		Gateway:           gw,
		Logger:            log.With().Str("component", "bot").Logger(),
		PollTimeout:       cfg.PollTimeout,
		TransactionsLimit: cfg.TransactionsLimit,
		DefaultLanguage:   cfg.DefaultLanguage,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ops *http.Server
	if cfg.Ops.Enabled {
		ops = opsServer(cfg.Ops.Addr)
		go func() {
			log.Info().Str("addr", cfg.Ops.Addr).Msg("ops listener starting")
			if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("ops listener failed")
			}
		}()
	}

	if err := b.Run(ctx); err != nil {
		log.Error().Err(err).Msg("update loop stopped")
	}

	if ops != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ops.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("ops listener shutdown failed")
		}
	}
	log.Info().Msg("shutdown complete")
}

// opsServer builds the operational HTTP listener with liveness and
// Prometheus endpoints.
func opsServer(addr string) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	start := time.Now()
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(start).Round(time.Second).String(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
