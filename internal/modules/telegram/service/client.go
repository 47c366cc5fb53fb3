package service

import (
	"context"
	"fmt"
	"strings"

	"signal_bot/internal/engine"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/notify"
	"signal_bot/internal/parser"
	"signal_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type PositionLister interface {
	ListActive(ctx context.Context) ([]*models.Position, error)
}

// Telegram is the alert transport: it long-polls the signal channel and
// pushes every post through the parser into the engine. It also answers
// /positions in the notification chat.
type Telegram struct {
	bot       *tgbot.BotAPI
	chatID    int64
	channelID int64

	parser   *parser.Parser
	engine   *engine.Engine
	store    PositionLister
	notifier notify.Notifier
}

func NewTelegram(
	cfg *config.Config,
	p *parser.Parser,
	e *engine.Engine,
	store PositionLister,
	n notify.Notifier,
) (*Telegram, error) {
	if cfg.Telegram.Token == "" {
		logger.Info("no telegram token configured, alert listener disabled")
		return &Telegram{}, nil
	}
	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, err
	}
	return &Telegram{
		bot:       b,
		chatID:    cfg.Telegram.ChatID,
		channelID: cfg.Telegram.ChannelID,
		parser:    p,
		engine:    e,
		store:     store,
		notifier:  n,
	}, nil
}

// Start: long-polling for channel posts (signals) and chat commands.
func (t *Telegram) Start(ctx context.Context) {
	if t.bot == nil {
		return
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "channel_post"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-updates:
				if upd.ChannelPost != nil && upd.ChannelPost.Chat != nil &&
					upd.ChannelPost.Chat.ID == t.channelID {
					go t.handleAlert(ctx, upd.ChannelPost.Text)
				}
				if upd.Message != nil && upd.Message.Chat != nil &&
					upd.Message.Chat.ID == t.chatID && upd.Message.IsCommand() {

					switch upd.Message.Command() {
					case "positions":
						go t.handlePositions(ctx)
					}
				}
			}
		}
	}()
}

func (t *Telegram) Stop() {
	if t.bot == nil {
		return
	}
	t.bot.StopReceivingUpdates()
}

func (t *Telegram) handleAlert(ctx context.Context, text string) {
	sig, ok := t.parser.Parse(text)
	if !ok {
		return
	}

	res, err := t.engine.Submit(ctx, sig)
	switch {
	case err != nil:
		logger.Error("signal %s %s rejected: %v", sig.Asset, sig.Side, err)
		t.notifier.Sendf("⛔️ %s %s rejected: %v", sig.Asset, sig.Side, err)
	case res == engine.Duplicate:
		logger.Info("signal %s %s ignored as duplicate", sig.Asset, sig.Side)
	default:
		logger.Info("signal %s %s accepted", sig.Asset, sig.Side)
	}
}

func (t *Telegram) handlePositions(ctx context.Context) {
	positions, err := t.store.ListActive(ctx)
	if err != nil {
		t.notifier.Sendf("❗️ failed to load positions: %v", err)
		return
	}
	if len(positions) == 0 {
		t.notifier.Send("📭 no open positions")
		return
	}

	var b strings.Builder
	b.WriteString("📊 Open positions:\n")
	for _, p := range positions {
		filled := 0
		for _, tg := range p.Targets {
			if tg.Status == models.StatusFilled {
				filled++
			}
		}
		fmt.Fprintf(&b, "- %s [%s] qty=%s entry=%s (%s) stop=%s targets=%d/%d\n",
			p.Asset, p.Entry.Side, p.Quantity, p.Entry.OpenPrice, p.Entry.Status,
			p.Stop.Value, filled, len(p.Targets))
	}
	t.notifier.Send(b.String())
}
