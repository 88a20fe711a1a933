package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gosha-bot/internal/config"
	"gosha-bot/internal/logging"
	"gosha-bot/internal/storage"
)

// handlePhoto recognizes text on a photo and answers it like a text question.
// Group photos need a caption that addresses the bot.
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	p := b.persona.Load()
	l := logging.Ctx(ctx)

	if msg.Chat.IsPrivate() {
		if b.opts.PrivateChatMode != config.PrivateAnswer {
			b.reply(ctx, msg, p.Replies.PrivateRefusal)
			b.journal(ctx, msg, storage.Event{Kind: storage.KindRefusal, Question: msg.Caption})
			return
		}
	} else if !b.addressed(msg, msg.Caption) {
		return
	}
	if b.ocr == nil {
		l.Warn().Msg("photo ignored: ocr is not configured")
		return
	}

	ev := storage.Event{Kind: storage.KindPhoto, Question: msg.Caption}
	data, err := b.downloadPhoto(ctx, largestPhoto(msg.Photo))
	if err != nil {
		b.replyError(ctx, msg, p, ev, err)
		return
	}

	text, err := b.ocr.Extract(ctx, data)
	if err != nil {
		l.Info().Err(err).Msg("ocr cancelled")
		return
	}
	if text == "" {
		b.reply(ctx, msg, p.Replies.NoText)
		ev.Error = "no text recognized"
		b.journal(ctx, msg, ev)
		return
	}
	l.Debug().Int("chars", len([]rune(text))).Msg("ocr text extracted")

	question := text
	if caption := strings.TrimSpace(msg.Caption); caption != "" {
		question = caption + "\n\n" + text
	}
	b.answer(ctx, msg, question, storage.KindPhoto)
}

func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best
}

func (b *Bot) downloadPhoto(ctx context.Context, photo tgbotapi.PhotoSize) ([]byte, error) {
	limit := b.opts.MaxPhotoBytes
	if limit > 0 && int64(photo.FileSize) > limit {
		return nil, fmt.Errorf("photo is too large: %d bytes", photo.FileSize)
	}
	fileURL, err := b.files.GetFileDirectURL(photo.FileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: http %d", resp.StatusCode)
	}

	var r io.Reader = resp.Body
	if limit > 0 {
		r = io.LimitReader(resp.Body, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("photo is too large: more than %d bytes", limit)
	}
	return data, nil
}
