package telegram

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/scamps86/sct-binance-bot/internal/models"
)

// commandRe parses the cycle command grammar, e.g.
// "/start 1m 10 50% 0.001 up": period, candle count, balance percent,
// buy margin and method.
var commandRe = regexp.MustCompile(`^/(start|check) ([1-9][mhdwM]) ([1-9]\d{0,2}) ([1-9]\d{0,2})% (\d+(?:\.\d+)?) (up|down)$`)

// Controller is the subset of the cycle controller the chat drives.
type Controller interface {
	Start(cfg models.BotConfig) error
	Check(cfg models.BotConfig) error
	Stop() error
}

// StatusRenderer produces the /status reply.
type StatusRenderer interface {
	RenderStatus() string
}

// Service bridges a Telegram chat and the cycle controller. Replies go to
// whichever chat sent the last message.
type Service struct {
	api    *tgbotapi.BotAPI
	logger *zap.SugaredLogger

	pair     string
	currency string

	mu     sync.Mutex
	chatID int64
	ctrl   Controller
	status StatusRenderer
}

func New(api *tgbotapi.BotAPI, pair, currency string, logger *zap.SugaredLogger) *Service {
	return &Service{
		api:      api,
		logger:   logger,
		pair:     pair,
		currency: currency,
	}
}

func (s *Service) SetController(ctrl Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl = ctrl
}

func (s *Service) SetStatusRenderer(status StatusRenderer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Notify sends a message to the active chat. Before the first incoming
// message there is no chat to reply to, so the text only reaches the log.
func (s *Service) Notify(text string) {
	s.mu.Lock()
	chatID := s.chatID
	s.mu.Unlock()

	if chatID == 0 {
		s.logger.Warnw("no active chat for notification", "text", text)
		return
	}
	if _, err := s.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		s.logger.Errorw("could not send telegram message", "err", err)
	}
}

func (s *Service) Notifyf(format string, args ...interface{}) {
	s.Notify(fmt.Sprintf(format, args...))
}

// Listen blocks consuming chat updates until Close stops the update channel.
func (s *Service) Listen() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	for update := range s.api.GetUpdatesChan(u) {
		if update.Message == nil || update.Message.Text == "" {
			continue
		}

		s.mu.Lock()
		s.chatID = update.Message.Chat.ID
		s.mu.Unlock()

		s.handle(update.Message.Text)
	}
}

func (s *Service) Close() {
	s.api.StopReceivingUpdates()
}

func (s *Service) handle(text string) {
	s.mu.Lock()
	ctrl := s.ctrl
	status := s.status
	s.mu.Unlock()

	if ctrl == nil {
		s.Notify("The bot is still starting up, try again in a moment.")
		return
	}

	switch {
	case commandRe.MatchString(text):
		command, cfg, err := parseCommand(text, s.pair, s.currency)
		if err != nil {
			s.Notifyf("Could not run the command: %v", err)
			return
		}
		if command == "start" {
			ctrl.Start(cfg)
		} else {
			ctrl.Check(cfg)
		}
	case text == "/stop":
		ctrl.Stop()
	case text == "/status":
		if status == nil {
			s.Notify("Status is not available yet.")
			return
		}
		s.Notify(status.RenderStatus())
	case text == "/help" || text == "/start":
		s.Notify(usage())
	default:
		s.Notifyf("Unknown command. %s", usage())
	}
}

// parseCommand turns a matched command into a cycle configuration. Errors
// mean the values matched the grammar but fall outside the allowed ranges.
func parseCommand(text, pair, currency string) (string, models.BotConfig, error) {
	m := commandRe.FindStringSubmatch(text)
	if m == nil {
		return "", models.BotConfig{}, fmt.Errorf("unrecognized command %q", text)
	}

	candleCount, err := strconv.Atoi(m[3])
	if err != nil {
		return "", models.BotConfig{}, err
	}
	balancePercent, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return "", models.BotConfig{}, err
	}
	buyMargin, err := strconv.ParseFloat(m[5], 64)
	if err != nil {
		return "", models.BotConfig{}, err
	}

	cfg := models.BotConfig{
		Pair:           pair,
		Currency:       currency,
		CandlePeriod:   m[2],
		CandleCount:    candleCount,
		BalancePercent: balancePercent,
		BuyMargin:      buyMargin,
		Method:         models.Method(m[6]),
	}
	if err := cfg.Validate(); err != nil {
		return "", models.BotConfig{}, err
	}
	return m[1], cfg, nil
}

func usage() string {
	return strings.Join([]string{
		"Commands:",
		"/start <period> <candles> <balance>% <margin> <up|down>",
		"/check <period> <candles> <balance>% <margin> <up|down>",
		"/stop",
		"/status",
		"Start example: /start 1m 10 50% 0.001 up",
	}, "\n")
}
