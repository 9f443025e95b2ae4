package tg

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Spok95/group-grader/internal/service"
)

// Notifier рассылает админам события периодов в Telegram.
type Notifier struct {
	bot   Sender
	chats []int64
	log   *zap.Logger
}

var _ service.Notifier = (*Notifier)(nil)

func NewNotifier(bot Sender, chats []int64, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{bot: bot, chats: chats, log: log}
}

// Connect поднимает бота по токену. Пустой токен — уведомления выключены.
func Connect(token string, chats []int64, log *zap.Logger) (service.Notifier, error) {
	if token == "" || len(chats) == 0 {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return NewNotifier(bot, chats, log), nil
}

func (n *Notifier) PeriodActivated(ctx context.Context, name string) {
	n.broadcast(ctx, fmt.Sprintf("✅ Период оценивания «%s» активирован.", name))
}

func (n *Notifier) PeriodCompleted(ctx context.Context, name string) {
	n.broadcast(ctx, fmt.Sprintf("🏁 Период оценивания «%s» завершён. Отчёт доступен в админке.", name))
}

func (n *Notifier) broadcast(ctx context.Context, text string) {
	for _, chatID := range n.chats {
		if ctx.Err() != nil {
			return
		}
		if _, err := Send(n.bot, tgbotapi.NewMessage(chatID, text)); err != nil {
			n.log.Warn("telegram send failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
}
