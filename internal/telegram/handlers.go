package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"gosha-bot/internal/config"
	"gosha-bot/internal/history"
	"gosha-bot/internal/llm"
	"gosha-bot/internal/logging"
	"gosha-bot/internal/persona"
	"gosha-bot/internal/storage"
	"gosha-bot/internal/trigger"
)

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || msg.From == nil {
		return
	}
	reqID := uuid.NewString()
	l := logging.L().With().
		Str(logging.FieldRequestID, reqID).
		Int64(logging.FieldChatID, msg.Chat.ID).
		Int64(logging.FieldUserID, msg.From.ID).
		Str(logging.FieldUsername, msg.From.UserName).
		Logger()
	ctx = logging.WithLogger(logging.WithRequestID(ctx, reqID), l)

	defer func() {
		if r := recover(); r != nil {
			l.Error().Interface("panic", r).Msg("handler panicked")
		}
	}()

	switch {
	case len(msg.Photo) > 0:
		b.handlePhoto(ctx, msg)
	case msg.Text != "":
		b.handleText(ctx, msg)
	}
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	p := b.persona.Load()
	text := msg.Text
	l := logging.Ctx(ctx)
	l.Debug().Str("chat_type", msg.Chat.Type).Str("text", text).Msg("incoming text")

	if p.IsForgetPhrase(text) {
		b.handleForget(ctx, msg, p)
		return
	}

	if msg.Chat.IsPrivate() {
		if b.opts.PrivateChatMode != config.PrivateAnswer {
			b.reply(ctx, msg, p.Replies.PrivateRefusal)
			b.journal(ctx, msg, storage.Event{Kind: storage.KindRefusal, Question: text})
			return
		}
		b.answer(ctx, msg, text, storage.KindText)
		return
	}

	if !b.addressed(msg, text) {
		b.remember(ctx, msg.Chat.ID, b.userMessage(msg, text))
		b.journal(ctx, msg, storage.Event{Kind: storage.KindRecorded, Question: text})
		return
	}

	if !trigger.IsQuestion(text) {
		b.remember(ctx, msg.Chat.ID, b.userMessage(msg, text))
		b.sendSticker(ctx, msg, p.Stickers.Mention, p.Replies.Mention)
		b.journal(ctx, msg, storage.Event{Kind: storage.KindSticker, Question: text})
		return
	}

	if trigger.IsYesNo(text, p.YesNoMarkers) && b.classifier != nil {
		b.remember(ctx, msg.Chat.ID, b.userMessage(msg, text))
		b.answerYesNo(ctx, msg, p, text)
		return
	}

	b.answer(ctx, msg, text, storage.KindText)
}

// addressed reports whether a group message is meant for the bot.
func (b *Bot) addressed(msg *tgbotapi.Message, text string) bool {
	if b.matcher.Load().Matches(text) {
		return true
	}
	r := msg.ReplyToMessage
	return r != nil && r.From != nil && b.selfID != 0 && r.From.ID == b.selfID
}

func (b *Bot) handleForget(ctx context.Context, msg *tgbotapi.Message, p *persona.Persona) {
	l := logging.Ctx(ctx)
	if !b.admins.IsAdmin(msg.From.UserName) {
		l.Warn().Msg("forget rejected: not an admin")
		b.reply(ctx, msg, p.Replies.ForgetDenied)
		b.journal(ctx, msg, storage.Event{Kind: storage.KindForget, Question: msg.Text, Error: "denied"})
		return
	}

	var err error
	if b.opts.ForgetScope == config.ForgetChat {
		err = b.store.Delete(ctx, msg.Chat.ID)
	} else {
		err = b.store.Clear(ctx)
	}
	if err != nil {
		l.Error().Err(err).Str("scope", string(b.opts.ForgetScope)).Msg("forget failed")
		b.replyError(ctx, msg, p, storage.Event{Kind: storage.KindForget, Question: msg.Text}, err)
		return
	}
	l.Warn().Str("scope", string(b.opts.ForgetScope)).Msg("conversation store wiped by admin")
	b.reply(ctx, msg, p.Replies.ForgetOK)
	b.journal(ctx, msg, storage.Event{Kind: storage.KindForget, Question: msg.Text, Answer: p.Replies.ForgetOK})
}

func (b *Bot) answerYesNo(ctx context.Context, msg *tgbotapi.Message, p *persona.Persona, question string) {
	start := time.Now()
	ev := storage.Event{Kind: storage.KindYesNo, Question: question}
	label, err := b.classifier.Classify(ctx, question)
	ev.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		b.replyError(ctx, msg, p, ev, err)
		return
	}

	var sticker, fallback string
	switch label {
	case llm.LabelYes:
		sticker, fallback = p.Stickers.Yes, p.Replies.Yes
	case llm.LabelNo:
		sticker, fallback = p.Stickers.No, p.Replies.No
	default:
		sticker, fallback = p.Stickers.Unknown, p.Replies.Unknown
	}
	b.sendSticker(ctx, msg, sticker, fallback)
	ev.Answer = string(label)
	b.journal(ctx, msg, ev)
}

// answer runs the full pipeline: history, assembly, provider call, reply.
func (b *Bot) answer(ctx context.Context, msg *tgbotapi.Message, question string, kind storage.Kind) {
	l := logging.Ctx(ctx)
	p := b.persona.Load()
	start := time.Now()
	ev := storage.Event{Kind: kind, Question: question}

	if p.Replies.Thinking != "" {
		b.reply(ctx, msg, p.Replies.Thinking)
	}

	hist, err := b.store.Get(ctx, msg.Chat.ID)
	if err != nil {
		l.Warn().Err(err).Msg("history read failed, answering without context")
		hist = nil
	}
	next := b.userMessage(msg, question)
	b.remember(ctx, msg.Chat.ID, next)

	var profile *persona.Profile
	if pr, ok := b.profiles.Lookup(msg.From.UserName); ok {
		profile = &pr
	}
	asm := b.assembler
	asm.Instruction = p.Instruction
	msgs := asm.Assemble(hist, next, profile)

	resp, err := b.gateway.Complete(ctx, msgs)
	ev.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		b.replyError(ctx, msg, p, ev, err)
		return
	}

	b.remember(ctx, msg.Chat.ID, history.Assistant(resp.Content))
	b.reply(ctx, msg, resp.Content)
	if formula, ok := mathFormula(resp.Content); ok && b.opts.MathRenderURL != "" {
		b.sendPhotoURL(ctx, msg, renderURL(b.opts.MathRenderURL, formula))
	}
	ev.Answer = resp.Content
	b.journal(ctx, msg, ev)
}

// replyError is the single place downstream failures reach the user.
func (b *Bot) replyError(ctx context.Context, msg *tgbotapi.Message, p *persona.Persona, ev storage.Event, err error) {
	l := logging.Ctx(ctx)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		l.Info().Msg("request cancelled")
		return
	}
	l.Error().Err(err).Str("kind", string(ev.Kind)).Msg("request failed")
	b.reply(ctx, msg, p.Replies.ErrorPrefix+err.Error())
	ev.Error = err.Error()
	b.journal(ctx, msg, ev)
}

func (b *Bot) userMessage(msg *tgbotapi.Message, text string) history.Message {
	return history.User(b.authorLabel(msg.From), text)
}

func (b *Bot) authorLabel(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if pr, ok := b.profiles.Lookup(u.UserName); ok && pr.DisplayName != "" {
		return pr.DisplayName
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return u.UserName
}

// remember appends to the conversation; persistence errors are logged only.
func (b *Bot) remember(ctx context.Context, chatID int64, msgs ...history.Message) {
	if err := b.store.Append(ctx, chatID, msgs...); err != nil {
		l := logging.Ctx(ctx)
		l.Error().Err(err).Msg("history append failed")
	}
}

func (b *Bot) journal(ctx context.Context, msg *tgbotapi.Message, ev storage.Event) {
	ev.Timestamp = time.Now().UTC()
	ev.RequestID = logging.RequestID(ctx)
	ev.ChatID = msg.Chat.ID
	if msg.From != nil {
		ev.UserID = msg.From.ID
		ev.Username = msg.From.UserName
	}
	if err := b.recorder.AppendInteraction(ev); err != nil {
		l := logging.Ctx(ctx)
		l.Warn().Err(err).Msg("journal append failed")
	}
}

func (b *Bot) reply(ctx context.Context, msg *tgbotapi.Message, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	if _, err := b.s.Send(out); err != nil {
		l := logging.Ctx(ctx)
		l.Error().Err(err).Msg("failed to send message")
	}
}

// sendSticker falls back to text when no sticker is configured.
func (b *Bot) sendSticker(ctx context.Context, msg *tgbotapi.Message, fileID, fallback string) {
	if fileID == "" {
		b.reply(ctx, msg, fallback)
		return
	}
	out := tgbotapi.NewSticker(msg.Chat.ID, tgbotapi.FileID(fileID))
	out.ReplyToMessageID = msg.MessageID
	if _, err := b.s.Send(out); err != nil {
		l := logging.Ctx(ctx)
		l.Error().Err(err).Msg("failed to send sticker")
	}
}

func (b *Bot) sendPhotoURL(ctx context.Context, msg *tgbotapi.Message, url string) {
	out := tgbotapi.NewPhoto(msg.Chat.ID, tgbotapi.FileURL(url))
	out.ReplyToMessageID = msg.MessageID
	if _, err := b.s.Send(out); err != nil {
		l := logging.Ctx(ctx)
		l.Warn().Err(err).Msg("failed to send formula image")
	}
}
