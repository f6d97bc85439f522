package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/evalscience/deepgov-bot/core/logger"
	tghelpers "github.com/evalscience/deepgov-bot/core/telegram/helpers"
	"github.com/evalscience/deepgov-bot/store"
	"github.com/evalscience/deepgov-bot/transcribe"
)

func (a *App) msgs(c tele.Context) catalog {
	if s := c.Sender(); s != nil {
		return Messages(a.sessions.Lang(s.ID))
	}
	return Messages(LangEN)
}

func (a *App) handleStart(c tele.Context) error {
	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(a.btnLangEN, a.btnLangDZ))

	msgs := a.msgs(c)
	if err := tghelpers.SendText(c, msgs.Welcome); err != nil {
		return err
	}
	return c.Send(msgs.ChooseLang, markup)
}

func (a *App) handleHelp(c tele.Context) error {
	return tghelpers.SendText(c, a.msgs(c).Help)
}

func (a *App) handleLanguage(c tele.Context) error {
	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(a.btnLangEN, a.btnLangDZ))
	return c.Send(a.msgs(c).ChooseLang, markup)
}

func (a *App) langCallback(lang Lang) tele.HandlerFunc {
	return func(c tele.Context) error {
		if s := c.Sender(); s != nil {
			a.sessions.SetLang(s.ID, lang)
		}
		if err := c.Respond(); err != nil {
			logger.Warn(tghelpers.BuildContext(c), "tg", "callback.respond_failed",
				slog.String("error", err.Error()),
			)
		}
		return tghelpers.SendText(c, Messages(lang).LangSet)
	}
}

func (a *App) handleRateLimited(c tele.Context) error {
	return tghelpers.SendText(c, a.msgs(c).RateLimited)
}

func (a *App) handleAuth(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	msgs := a.msgs(c)

	chat, sender := c.Chat(), c.Sender()
	if chat == nil || sender == nil {
		return nil
	}

	req, err := a.provider.StartVerification(ctx, chat.ID, sender.ID)
	if err != nil {
		logger.Error(ctx, "identity", "auth.start_failed",
			slog.String("provider", a.provider.Name()),
			slog.String("error", err.Error()),
		)
		return tghelpers.SendText(c, msgs.AuthFailed)
	}

	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(markup.URL("Verify", req.DeepLink)))
	return c.Send(msgs.AuthIntro, markup)
}

func (a *App) handleProfile(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	msgs := a.msgs(c)

	sender := c.Sender()
	if sender == nil {
		return nil
	}

	profile, err := a.profiles.GetByUserID(ctx, a.pseudonym(sender.ID))
	if err != nil {
		logger.Error(ctx, "db", "profile.get_failed", slog.String("error", err.Error()))
		return tghelpers.SendText(c, msgs.Apology)
	}
	if profile == nil {
		return tghelpers.SendText(c, msgs.ProfileNone)
	}
	return tghelpers.SendText(c, formatProfile(msgs, profile))
}

func formatProfile(msgs catalog, p *store.Profile) string {
	var b strings.Builder
	b.WriteString(msgs.ProfileHeader)
	add := func(label, value string) {
		if value != "" {
			b.WriteString(fmt.Sprintf("\n%s: %s", label, value))
		}
	}
	add("Gender", p.Gender.String)
	add("Date of Birth", p.DateOfBirth.String)
	add("Citizenship", p.Citizenship.String)
	add("Village", p.Address1.String)
	add("Gewog", p.Address2.String)
	add("Dzongkhag", p.Address3.String)
	return b.String()
}

func (a *App) handleClaim(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	msgs := a.msgs(c)

	sender := c.Sender()
	if sender == nil {
		return nil
	}
	pseudonym := a.pseudonym(sender.ID)

	profile, err := a.profiles.GetByUserID(ctx, pseudonym)
	if err != nil {
		logger.Error(ctx, "db", "claim.profile_failed", slog.String("error", err.Error()))
		return tghelpers.SendText(c, msgs.Apology)
	}
	if profile == nil {
		return tghelpers.SendText(c, msgs.ProfileNone)
	}

	turns, err := a.responses.CountByUser(ctx, pseudonym)
	if err != nil {
		logger.Error(ctx, "db", "claim.count_failed", slog.String("error", err.Error()))
		return tghelpers.SendText(c, msgs.Apology)
	}
	if turns < a.cfg.Claim.MinTurns {
		return tghelpers.SendText(c, msgs.ClaimTooFew)
	}
	return tghelpers.SendText(c, msgs.ClaimReady)
}

func (a *App) handleText(c tele.Context) error {
	return a.converse(c, c.Text())
}

// converse runs one conversation turn and delivers the reply in
// Telegram-sized chunks.
func (a *App) converse(c tele.Context, text string) error {
	ctx := tghelpers.BuildContext(c)
	msgs := a.msgs(c)

	chat, sender := c.Chat(), c.Sender()
	if chat == nil || sender == nil || strings.TrimSpace(text) == "" {
		return nil
	}

	_ = c.Notify(tele.Typing)

	reply, err := a.turns.Handle(ctx, chat.ID, sender.ID, text)
	if err != nil {
		return tghelpers.SendText(c, msgs.Apology)
	}

	for _, part := range SplitMessage(reply) {
		if err := tghelpers.SendText(c, part); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) handleVoice(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	msgs := a.msgs(c)

	msg := c.Message()
	if msg == nil || msg.Voice == nil {
		return nil
	}

	_ = c.Notify(tele.Typing)

	file, err := c.Bot().FileByID(msg.Voice.FileID)
	if err != nil {
		logger.Error(ctx, "stt", "voice.file_failed", slog.String("error", err.Error()))
		return tghelpers.SendText(c, msgs.Apology)
	}
	fileURL := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", a.cfg.Telegram.Token, file.FilePath)

	text, err := a.stt.Transcribe(ctx, fileURL)
	if errors.Is(err, transcribe.ErrNoSpeech) {
		return tghelpers.SendText(c, msgs.NoSpeech)
	}
	if err != nil {
		logger.Error(ctx, "stt", "voice.transcribe_failed", slog.String("error", err.Error()))
		return tghelpers.SendText(c, msgs.Apology)
	}

	logger.Info(ctx, "stt", "voice.transcribed", slog.Int("chars", len(text)))
	return a.converse(c, text)
}
