package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"boostskilla_bot/internal/feature/admin"
	"boostskilla_bot/internal/feature/group"
	"boostskilla_bot/internal/feature/login"
	"boostskilla_bot/internal/logging"
	"boostskilla_bot/internal/metrics"
	"boostskilla_bot/internal/texts"
)

const (
	defaultUpdateTimeout = 15 * time.Second
	apologyTimeout       = 5 * time.Second
)

// Gateway is the subset of the Bot API the handlers call. *bot.Bot satisfies it.
type Gateway interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	GetChat(ctx context.Context, params *bot.GetChatParams) (*models.ChatFullInfo, error)
	ExportChatInviteLink(ctx context.Context, params *bot.ExportChatInviteLinkParams) (string, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

var _ Gateway = (*bot.Bot)(nil)

// Dependencies is the application context shared by all handlers.
type Dependencies struct {
	Groups  *group.Registrar
	Logins  *login.Tracker
	Admins  *admin.Directory
	Texts   texts.Static
	Metrics *metrics.Metrics
	Logger  *logrus.Entry
	// Timeout bounds the handling of one update. Zero uses the default.
	Timeout time.Duration
}

// Router turns updates into actions and runs the matching handler.
type Router struct {
	groups  *group.Registrar
	logins  *login.Tracker
	admins  *admin.Directory
	texts   texts.Static
	metrics *metrics.Metrics
	logger  *logrus.Entry
	timeout time.Duration
}

// NewRouter validates deps and builds a Router.
func NewRouter(deps Dependencies) (*Router, error) {
	switch {
	case deps.Groups == nil:
		return nil, errors.New("group registrar is required")
	case deps.Logins == nil:
		return nil, errors.New("login tracker is required")
	case deps.Admins == nil:
		return nil, errors.New("admin directory is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.Logger()
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultUpdateTimeout
	}

	return &Router{
		groups:  deps.Groups,
		logins:  deps.Logins,
		admins:  deps.Admins,
		texts:   deps.Texts,
		metrics: deps.Metrics,
		logger:  logger,
		timeout: timeout,
	}, nil
}

// request is the normalized view of an update the handlers work from.
type request struct {
	action     Action
	identifier string

	chatID    int64
	chatType  models.ChatType
	chatTitle string
	messageID int

	userID   int64
	userName string
	username string

	callbackID string
	logger     *logrus.Entry
}

func (r request) private() bool {
	return r.chatType == models.ChatTypePrivate
}

// HandleUpdate dispatches one update. Handler failures are logged and answered
// with a generic apology.
func (r *Router) HandleUpdate(ctx context.Context, gw Gateway, update *models.Update) {
	if r == nil || gw == nil || update == nil {
		return
	}

	req, ok := newRequest(update)
	if !ok {
		return
	}
	req.logger = logging.Enrich(r.logger, logging.Context{
		UserID:   req.userID,
		ChatID:   req.chatID,
		UserName: req.userName,
		Action:   req.action.String(),
	})

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if req.callbackID != "" {
		r.answerCallback(ctx, gw, req)
	}

	started := time.Now()
	err := r.dispatch(ctx, gw, req)
	r.metrics.ObserveUpdate(req.action.String(), time.Since(started), err)

	if err == nil {
		req.logger.WithField("event", "action_handled").Debug("handled action")
		return
	}

	req.logger.WithFields(logging.Fields{
		"event":      "action_failed",
		"identifier": req.identifier,
	}).WithError(err).Error("failed to handle action")

	apologyCtx, cancelApology := context.WithTimeout(context.WithoutCancel(ctx), apologyTimeout)
	defer cancelApology()
	if sendErr := r.send(apologyCtx, gw, req.chatID, texts.Apology, nil); sendErr != nil {
		req.logger.WithField("event", "apology_failed").WithError(sendErr).Warn("failed to send apology")
	}
}

func (r *Router) dispatch(ctx context.Context, gw Gateway, req request) error {
	switch req.action {
	case ActionStart:
		return r.handleStart(ctx, gw, req)
	case ActionHelp:
		return r.send(ctx, gw, req.chatID, texts.Help, nil)
	case ActionStats:
		return r.handleStats(ctx, gw, req)
	case ActionRegisterGroup:
		return r.handleRegisterGroup(ctx, gw, req)
	case ActionUnregisterGroup:
		return r.handleUnregisterGroup(ctx, gw, req)
	case ActionListAllGroups:
		return r.handleListAllGroups(ctx, gw, req)
	case ActionLogOnToday:
		return r.handleLogOnToday(ctx, gw, req)
	case ActionWhoIsOnToday:
		return r.handleWhoIsOnToday(ctx, gw, req)
	case ActionHowToAddGroup:
		return r.send(ctx, gw, req.chatID, texts.HowToAddGroup, nil)
	case ActionAdminInfo:
		return r.handleAdminInfo(ctx, gw, req)
	case ActionRules:
		return r.send(ctx, gw, req.chatID, r.texts.Rules, nil)
	case ActionMoreInfo:
		return r.send(ctx, gw, req.chatID, r.texts.MoreInfo, nil)
	default:
		return r.send(ctx, gw, req.chatID, "you have asked to: "+req.identifier, nil)
	}
}

func newRequest(update *models.Update) (request, bool) {
	switch {
	case update.Message != nil:
		name, ok := parseCommand(update.Message.Text)
		if !ok {
			return request{}, false
		}
		action := commandAction(name)
		if action == ActionUnknown {
			return request{}, false
		}

		req := request{
			action:     action,
			identifier: name,
			messageID:  update.Message.ID,
		}
		req.setChat(update.Message.Chat)
		req.setUser(update.Message.From)
		return req, true
	case update.CallbackQuery != nil:
		query := update.CallbackQuery
		req := request{
			action:     ParseAction(query.Data),
			identifier: query.Data,
			callbackID: query.ID,
		}
		req.setUser(&query.From)

		switch {
		case query.Message.Message != nil:
			req.setChat(query.Message.Message.Chat)
			req.messageID = query.Message.Message.ID
		case query.Message.InaccessibleMessage != nil:
			req.setChat(query.Message.InaccessibleMessage.Chat)
			req.messageID = query.Message.InaccessibleMessage.MessageID
		default:
			return request{}, false
		}
		return req, true
	default:
		return request{}, false
	}
}

func (r *request) setChat(chat models.Chat) {
	r.chatID = chat.ID
	r.chatType = chat.Type
	r.chatTitle = strings.TrimSpace(chat.Title)
}

func (r *request) setUser(user *models.User) {
	if user == nil {
		return
	}
	r.userID = user.ID
	r.username = user.Username
	r.userName = displayName(user)
}

// displayName is "@username" when set, else the full name, else the numeric id.
func displayName(user *models.User) string {
	if user == nil {
		return ""
	}
	if handle := strings.TrimSpace(user.Username); handle != "" {
		return "@" + handle
	}
	if name := strings.TrimSpace(strings.TrimSpace(user.FirstName) + " " + strings.TrimSpace(user.LastName)); name != "" {
		return name
	}
	return strconv.FormatInt(user.ID, 10)
}

func (r *Router) answerCallback(ctx context.Context, gw Gateway, req request) {
	if _, err := gw.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: req.callbackID}); err != nil {
		req.logger.WithField("event", "callback_answer_failed").WithError(err).Warn("failed to answer callback query")
	}
}

func (r *Router) send(ctx context.Context, gw Gateway, chatID int64, text string, markup *models.InlineKeyboardMarkup) error {
	params := &bot.SendMessageParams{ChatID: chatID, Text: text}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	return r.sendParams(ctx, gw, params)
}

func (r *Router) sendParams(ctx context.Context, gw Gateway, params *bot.SendMessageParams) error {
	if _, err := gw.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// edit replaces the text of the message carrying the pressed button, or sends
// a new message when there is none.
func (r *Router) edit(ctx context.Context, gw Gateway, req request, text string) error {
	if req.messageID == 0 {
		return r.send(ctx, gw, req.chatID, text, nil)
	}

	if _, err := gw.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    req.chatID,
		MessageID: req.messageID,
		Text:      text,
	}); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}
