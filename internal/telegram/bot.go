package telegram

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gosha-bot/internal/auth"
	"gosha-bot/internal/config"
	"gosha-bot/internal/history"
	"gosha-bot/internal/llm"
	"gosha-bot/internal/logging"
	"gosha-bot/internal/persona"
	"gosha-bot/internal/prompt"
	"gosha-bot/internal/storage"
	"gosha-bot/internal/trigger"
	"gosha-bot/internal/worker"
)

type completer interface {
	Complete(ctx context.Context, messages []llm.Message) (llm.Response, error)
}

type yesNoClassifier interface {
	Classify(ctx context.Context, question string) (llm.Label, error)
}

type textExtractor interface {
	Extract(ctx context.Context, image []byte) (string, error)
}

// Deps are the pipeline components the bot dispatches to.
type Deps struct {
	Gateway    completer
	Classifier yesNoClassifier
	Store      history.Store
	Assembler  prompt.Assembler
	Persona    *persona.Persona
	Profiles   persona.Profiles
	Admins     *auth.Service
	Recorder   storage.Recorder
	OCR        textExtractor
}

type Options struct {
	PrivateChatMode config.PrivateChatMode
	ForgetScope     config.ForgetScope
	Workers         int
	MaxPhotoBytes   int64
	MathRenderURL   string
}

type Bot struct {
	api   *tgbotapi.BotAPI
	s     sender
	files fileResolver
	http  *http.Client

	selfID int64

	gateway    completer
	classifier yesNoClassifier
	store      history.Store
	assembler  prompt.Assembler
	profiles   persona.Profiles
	admins     *auth.Service
	recorder   storage.Recorder
	ocr        textExtractor
	opts       Options

	persona atomic.Pointer[persona.Persona]
	matcher atomic.Pointer[trigger.Matcher]
}

func New(botToken string, deps Deps, opts Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	s := botAPISender{api: api}
	b := newBot(s, s, deps, opts)
	b.api = api
	b.selfID = api.Self.ID
	l := logging.L()
	l.Info().Str("bot", api.Self.UserName).Msg("authorized on telegram")
	return b, nil
}

func newBot(s sender, files fileResolver, deps Deps, opts Options) *Bot {
	if deps.Recorder == nil {
		deps.Recorder = storage.Nop{}
	}
	if deps.Admins == nil {
		deps.Admins = auth.New(nil)
	}
	if deps.Persona == nil {
		deps.Persona = persona.Default()
	}
	if opts.PrivateChatMode == "" {
		opts.PrivateChatMode = config.PrivateRefuse
	}
	if opts.ForgetScope == "" {
		opts.ForgetScope = config.ForgetAll
	}
	b := &Bot{
		s:          s,
		files:      files,
		http:       &http.Client{Timeout: 60 * time.Second},
		gateway:    deps.Gateway,
		classifier: deps.Classifier,
		store:      deps.Store,
		assembler:  deps.Assembler,
		profiles:   deps.Profiles,
		admins:     deps.Admins,
		recorder:   deps.Recorder,
		ocr:        deps.OCR,
		opts:       opts,
	}
	b.SetPersona(deps.Persona)
	return b
}

// SetPersona swaps the persona used by subsequent updates.
func (b *Bot) SetPersona(p *persona.Persona) {
	b.persona.Store(p)
	b.matcher.Store(trigger.New(p.Triggers))
}

// Run polls updates until ctx is done. Updates of one chat are handled in
// order; different chats are handled concurrently up to Options.Workers.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	lanes := worker.NewLanes[int64, tgbotapi.Update](ctx, b.opts.Workers, 32, b.handleUpdate)
	defer lanes.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(lanes, update)
		}
	}
}

// dispatch hands an update to its chat lane. A chat that floods its lane
// loses the overflow instead of stalling every other chat.
func (b *Bot) dispatch(lanes *worker.Lanes[int64, tgbotapi.Update], update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	err := lanes.Enqueue(msg.Chat.ID, update)
	if err == nil {
		return
	}
	l := logging.L()
	if errors.Is(err, worker.ErrLaneFull) {
		l.Warn().Int64(logging.FieldChatID, msg.Chat.ID).Int("message_id", msg.MessageID).Msg("chat queue full, update dropped")
		return
	}
	l.Debug().Err(err).Msg("update not dispatched")
}

// Notify sends a plain text message outside of any conversation.
func (b *Bot) Notify(chatID int64, text string) error {
	_, err := b.s.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
