// Package bot wires the Telegram front-end: commands, free-form turns, voice
// notes, and verification notifications.
package bot

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/evalscience/deepgov-bot/conversation"
	coreconfig "github.com/evalscience/deepgov-bot/core/config"
	"github.com/evalscience/deepgov-bot/core/logger"
	"github.com/evalscience/deepgov-bot/core/telegram"
	"github.com/evalscience/deepgov-bot/core/telegram/commands"
	"github.com/evalscience/deepgov-bot/core/telegram/middleware"
	"github.com/evalscience/deepgov-bot/core/telegram/sender"
	"github.com/evalscience/deepgov-bot/identity"
	"github.com/evalscience/deepgov-bot/security"
	"github.com/evalscience/deepgov-bot/store"
)

// Transcriber converts a voice-note file URL to text.
type Transcriber interface {
	Transcribe(ctx context.Context, fileURL string) (string, error)
}

// App glues the services behind the Telegram handlers.
type App struct {
	cfg       *coreconfig.Config
	sessions  *Sessions
	provider  identity.Provider
	turns     *conversation.Service
	stt       Transcriber
	profiles  *store.Profiles
	responses *store.Responses
	pseudo    *security.Pseudonymizer

	bot  atomic.Pointer[tele.Bot]
	disp atomic.Pointer[sender.Dispatcher]

	btnLangEN tele.Btn
	btnLangDZ tele.Btn
}

// Deps carries the services an App needs.
type Deps struct {
	Config    *coreconfig.Config
	Provider  identity.Provider
	Turns     *conversation.Service
	STT       Transcriber
	Profiles  *store.Profiles
	Responses *store.Responses
	Pseudo    *security.Pseudonymizer
}

// NewApp builds the front-end glue.
func NewApp(d Deps) *App {
	return &App{
		cfg:       d.Config,
		sessions:  NewSessions(d.Config.RateLimit.Window, d.Config.RateLimit.Ceiling),
		provider:  d.Provider,
		turns:     d.Turns,
		stt:       d.STT,
		profiles:  d.Profiles,
		responses: d.Responses,
		pseudo:    d.Pseudo,
		btnLangEN: tele.Btn{Unique: "lang_en", Text: "English"},
		btnLangDZ: tele.Btn{Unique: "lang_dz", Text: "རྫོང་ཁ"},
	}
}

// AttachRuntime stores the running bot and dispatcher so webhook
// notifications can reach chats. Wire it from the run OnStart hook.
func (a *App) AttachRuntime(rt telegram.Runtime) {
	a.bot.Store(rt.Bot)
	a.disp.Store(rt.Dispatcher)
}

// Sessions exposes the session manager for middleware wiring.
func (a *App) Sessions() *Sessions {
	return a.sessions
}

// Register binds commands and fallbacks into the registry.
func (a *App) Register(reg *telegram.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Start the conversation",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     a.handleHelp,
		Description: "Show available commands",
	})
	reg.RegisterCommand("/language", commands.Command{
		Handler:     a.handleLanguage,
		Description: "Change language",
		Aliases:     []string{"lang"},
	})
	reg.RegisterCommand("/auth", commands.Command{
		Handler:     a.handleAuth,
		Description: "Verify your identity",
	})
	reg.RegisterCommand("/profile", commands.Command{
		Handler:     a.handleProfile,
		Description: "Show your verified profile",
	})
	reg.RegisterCommand("/claim", commands.Command{
		Handler:     a.handleClaim,
		Description: "Claim your participation reward",
	})
	reg.SetTextFallback(a.handleText)
	reg.SetVoiceHandler(a.handleVoice)
}

// Middlewares returns the global middleware chain, outermost first.
func (a *App) Middlewares() []telegram.Middleware {
	return []telegram.Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logging", Use: middleware.LoggerMiddleware},
		{Name: "rate_limit", Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
			Sessions:  a.sessions,
			OnLimited: a.handleRateLimited,
		})},
	}
}

// Routes returns the non-command routes: callbacks, free text, voice notes.
func (a *App) Routes(reg *telegram.Registry) []telegram.Route {
	return []telegram.Route{
		{Endpoint: &a.btnLangEN, Handler: a.langCallback(LangEN)},
		{Endpoint: &a.btnLangDZ, Handler: a.langCallback(LangDZ)},
		{Endpoint: tele.OnText, Handler: a.dispatchText(reg)},
		{Endpoint: tele.OnVoice, Handler: reg.VoiceHandler()},
	}
}

// dispatchText routes slash commands through the registry and everything else
// to the conversation fallback.
func (a *App) dispatchText(reg *telegram.Registry) tele.HandlerFunc {
	return func(c tele.Context) error {
		text := c.Text()
		if len(text) > 0 && text[0] == '/' {
			name := text
			if i := strings.IndexAny(name, " @"); i > 0 {
				name = name[:i]
			}
			if _, cmd, ok := reg.LookupCommand(name); ok {
				if cmd.AdminOnly && c.Sender() != nil && c.Sender().ID != a.cfg.Telegram.AdminID {
					return nil
				}
				return cmd.Handler(c)
			}
			return a.handleHelp(c)
		}
		if fallback := reg.TextFallback(); fallback != nil {
			return fallback(c)
		}
		return nil
	}
}

// VerificationResult implements webhook.Notifier. The outcome message is the
// only notification the chat receives for a proof request.
func (a *App) VerificationResult(ctx context.Context, chatID, userID int64, verified bool) {
	b := a.bot.Load()
	if b == nil {
		logger.Warn(ctx, "webhook", "notify.no_bot", slog.Int64("chat_id", chatID))
		return
	}

	msgs := Messages(a.sessions.Lang(userID))
	text := msgs.Verified
	if !verified {
		text = msgs.NotVerified
	}

	send := func() error {
		_, err := b.Send(&tele.Chat{ID: chatID}, text)
		return err
	}
	// Detach from the webhook request context: the delivery must outlive the
	// 202 response.
	if d := a.disp.Load(); d != nil {
		if err := d.Enqueue(context.WithoutCancel(ctx), "notify.verification", send); err == nil {
			return
		}
	}
	if err := send(); err != nil {
		logger.Error(ctx, "webhook", "notify.send_failed",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

func (a *App) pseudonym(userID int64) string {
	return a.pseudo.Stable(strconv.FormatInt(userID, 10))
}
