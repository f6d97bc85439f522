// Command bot runs the Telegram front-end together with the identity
// callback server.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/sync/errgroup"

	"github.com/evalscience/deepgov-bot/bot"
	"github.com/evalscience/deepgov-bot/conversation"
	"github.com/evalscience/deepgov-bot/core/cloudrun"
	coreconfig "github.com/evalscience/deepgov-bot/core/config"
	"github.com/evalscience/deepgov-bot/core/database"
	"github.com/evalscience/deepgov-bot/core/logger"
	"github.com/evalscience/deepgov-bot/core/telegram"
	"github.com/evalscience/deepgov-bot/identity"
	"github.com/evalscience/deepgov-bot/identity/ndi"
	"github.com/evalscience/deepgov-bot/identity/selfid"
	"github.com/evalscience/deepgov-bot/security"
	"github.com/evalscience/deepgov-bot/store"
	"github.com/evalscience/deepgov-bot/transcribe"
	"github.com/evalscience/deepgov-bot/webhook"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run() error {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := coreconfig.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.InitLogger(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var dbCfg database.Config
	if err := envconfig.Process("", &dbCfg); err != nil {
		return fmt.Errorf("load db config: %w", err)
	}
	if err := database.RunMigrations(dbCfg); err != nil {
		return err
	}
	db, err := database.Connect(dbCfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	pseudo, err := security.NewPseudonymizer(cfg.Security.HMACSecret)
	if err != nil {
		return err
	}
	profiles := store.NewProfiles(db)
	responses := store.NewResponses(db)

	if cfg.Webhook.PublicURL == "" && cloudrun.OnCloudRun() {
		url, err := cloudrun.ServiceURL(ctx)
		if err != nil {
			return fmt.Errorf("resolve public url: %w", err)
		}
		cfg.Webhook.PublicURL = url
		logger.Info(ctx, "app", "public_url.resolved", slog.String("url", url))
	}

	correlator := identity.NewCorrelator()

	var (
		provider  identity.Provider
		ndiClient *ndi.Client
	)
	switch cfg.Identity.Provider {
	case coreconfig.ProviderNDI:
		ndiClient = ndi.NewClient(cfg.Identity.NDI)
		provider = ndi.NewProvider(ndiClient, correlator, cfg.Identity.LinkURL)
	case coreconfig.ProviderSelf:
		provider = selfid.NewProvider(cfg.Identity.Self, correlator)
	}

	systemPrompt := conversation.LoadSystemPrompt(ctx, cfg.AI)
	aiClient := conversation.NewClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model)
	turns := conversation.NewService(aiClient, &responseAudit{responses: responses, pseudo: pseudo}, systemPrompt)

	stt := transcribe.NewClient(cfg.Transcribe.APIKey, cfg.Transcribe.BaseURL, cfg.Transcribe.Model)

	app := bot.NewApp(bot.Deps{
		Config:    cfg,
		Provider:  provider,
		Turns:     turns,
		STT:       stt,
		Profiles:  profiles,
		Responses: responses,
		Pseudo:    pseudo,
	})

	handler := webhook.NewHandler(correlator, profiles, app, pseudo)
	srv := webhook.NewServer(cfg.Webhook, handler)

	reg := telegram.NewRegistry()
	app.Register(reg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(gctx, "webhook", "server.listen", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("webhook server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return telegram.Run(gctx, telegram.RunOptions{
			Config:      cfg,
			Registry:    reg,
			Middlewares: app.Middlewares(),
			Routes:      app.Routes(reg),
			OnStart: func(ctx context.Context, rt telegram.Runtime) error {
				app.AttachRuntime(rt)
				if ndiClient != nil {
					callback := cfg.Webhook.PublicURL + cfg.Webhook.Path
					if err := ndiClient.EnsureWebhook(ctx, callback); err != nil {
						return fmt.Errorf("register identity webhook: %w", err)
					}
					logger.Info(ctx, "identity", "webhook.registered", slog.String("url", callback))
				}
				logger.Info(ctx, "app", "ready")
				return nil
			},
		})
	})

	return g.Wait()
}

// responseAudit pseudonymizes the user id before the turn lands in the audit
// table.
type responseAudit struct {
	responses *store.Responses
	pseudo    *security.Pseudonymizer
}

func (a *responseAudit) InsertResponse(ctx context.Context, userID, chatID int64, responseID string) error {
	return a.responses.Insert(ctx, a.pseudo.Stable(strconv.FormatInt(userID, 10)), chatID, responseID)
}
