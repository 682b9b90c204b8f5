package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"boostskilla_bot/internal/domain"
	"boostskilla_bot/internal/feature/admin"
	"boostskilla_bot/internal/feature/group"
	"boostskilla_bot/internal/feature/login"
	"boostskilla_bot/internal/logging"
	"boostskilla_bot/internal/texts"
)

// ErrNotUpgradeable means Telegram refused to produce an invite link for the
// chat, typically because the bot is not an admin there.
var ErrNotUpgradeable = errors.New("chat cannot provide an invite link")

const menuPrompt = "Please choose:"

func (r *Router) handleStart(ctx context.Context, gw Gateway, req request) error {
	if req.private() {
		if err := r.send(ctx, gw, req.chatID, menuPrompt, privateMenu()); err != nil {
			return err
		}
		if !r.admins.IsAdmin(req.username) {
			return nil
		}
		return r.send(ctx, gw, req.chatID,
			fmt.Sprintf("Hi %s, you can also see admin views", req.userName),
			keyboard(ActionAdminInfo),
		)
	}

	active, err := r.groups.IsActive(ctx, req.chatID)
	if err != nil {
		return err
	}
	return r.send(ctx, gw, req.chatID, menuPrompt, groupMenu(active))
}

func (r *Router) handleRegisterGroup(ctx context.Context, gw Gateway, req request) error {
	link, err := exportInviteLink(ctx, gw, req.chatID)
	if errors.Is(err, ErrNotUpgradeable) {
		req.logger.WithField("event", "group_not_upgradeable").WithError(err).Info("chat cannot be registered")
		return r.send(ctx, gw, req.chatID, texts.NotUpgradeable, keyboard(ActionHowToAddGroup))
	}
	if err != nil {
		return err
	}

	chat, err := gw.GetChat(ctx, &bot.GetChatParams{ChatID: req.chatID})
	if err != nil {
		return fmt.Errorf("get chat: %w", err)
	}
	if chat == nil {
		chat = &models.ChatFullInfo{}
	}

	title := firstNonEmpty(chat.Title, req.chatTitle)
	outcome, err := r.groups.Register(ctx, domain.Group{
		Name:        title,
		Link:        link,
		Description: chat.Description,
		ChatID:      req.chatID,
		Admin:       req.userName,
	})
	if err != nil {
		return err
	}
	r.metrics.GroupChanged(outcome.String())

	return r.edit(ctx, gw, req, "Register group: "+title)
}

func (r *Router) handleUnregisterGroup(ctx context.Context, gw Gateway, req request) error {
	err := r.groups.Unregister(ctx, req.chatID)
	switch {
	case errors.Is(err, group.ErrUnknownGroup):
		return r.send(ctx, gw, req.chatID, fmt.Sprintf("group %s is unknown", req.chatTitle), nil)
	case errors.Is(err, group.ErrGroupNotActive):
		return r.send(ctx, gw, req.chatID, fmt.Sprintf("group %s is not active", req.chatTitle), nil)
	case err != nil:
		return err
	}

	r.metrics.GroupChanged("unregistered")
	return r.send(ctx, gw, req.chatID, "removed group: "+req.chatTitle, nil)
}

func (r *Router) handleListAllGroups(ctx context.Context, gw Gateway, req request) error {
	groups, err := r.groups.ListActive(ctx)
	if err != nil {
		return err
	}

	if err := r.send(ctx, gw, req.chatID, "The list of groups is:", nil); err != nil {
		return err
	}

	for _, g := range groups {
		name, description, link := g.Name, g.Description, g.Link

		chat, err := gw.GetChat(ctx, &bot.GetChatParams{ChatID: g.ChatID})
		if err != nil || chat == nil {
			req.logger.WithFields(logging.Fields{
				"event":       "group_metadata_fallback",
				"group_chat":  g.ChatID,
				"group_title": g.Name,
			}).WithError(err).Warn("using stored group metadata")
		} else {
			name = firstNonEmpty(chat.Title, name)
			description = chat.Description
			link = firstNonEmpty(chat.InviteLink, link)
		}

		var markup *models.InlineKeyboardMarkup
		if link != "" {
			markup = joinButton(link)
		}

		text := fmt.Sprintf("Name: %s.\nDescription: %s.\nChat admin: %s", name, description, g.Admin)
		if err := r.send(ctx, gw, req.chatID, text, markup); err != nil {
			return err
		}
	}

	return r.send(ctx, gw, req.chatID, fmt.Sprintf("There are %d active groups", len(groups)), nil)
}

func (r *Router) handleLogOnToday(ctx context.Context, gw Gateway, req request) error {
	topic := ""
	if !req.private() {
		topic = req.chatTitle
	}

	entry, err := r.logins.LogOn(ctx, req.userName, req.userID, topic)
	if err != nil {
		return err
	}
	r.metrics.LoggedOn()

	return r.send(ctx, gw, req.chatID, "You have logged in as doing "+entry.Topic, nil)
}

func (r *Router) handleWhoIsOnToday(ctx context.Context, gw Gateway, req request) error {
	report, err := r.logins.WhoIsOn(ctx)
	if err != nil {
		return err
	}

	return r.sendParams(ctx, gw, &bot.SendMessageParams{
		ChatID:    req.chatID,
		Text:      "<pre>" + html.EscapeString(login.FormatReport(report)) + "</pre>",
		ParseMode: models.ParseModeHTML,
	})
}

// handleAdminInfo is gated on the admin list on purpose: non-admins get
// texts.NotAdmin instead of the admin guidance.
func (r *Router) handleAdminInfo(ctx context.Context, gw Gateway, req request) error {
	if !r.admins.IsAdmin(req.username) {
		return r.send(ctx, gw, req.chatID, texts.NotAdmin, nil)
	}
	return r.send(ctx, gw, req.chatID, texts.AdminInfo, nil)
}

func (r *Router) handleStats(ctx context.Context, gw Gateway, req request) error {
	summary, err := r.admins.Summary(ctx, req.username, r.logins.Today())
	if errors.Is(err, admin.ErrNotAdmin) {
		return r.send(ctx, gw, req.chatID, texts.NotAdmin, nil)
	}
	if err != nil {
		return err
	}
	return r.send(ctx, gw, req.chatID, summary, nil)
}

func exportInviteLink(ctx context.Context, gw Gateway, chatID int64) (string, error) {
	link, err := gw.ExportChatInviteLink(ctx, &bot.ExportChatInviteLinkParams{ChatID: chatID})
	switch {
	case errors.Is(err, bot.ErrorBadRequest), errors.Is(err, bot.ErrorForbidden):
		return "", fmt.Errorf("%w: %v", ErrNotUpgradeable, err)
	case err != nil:
		return "", fmt.Errorf("export invite link: %w", err)
	case strings.TrimSpace(link) == "":
		return "", ErrNotUpgradeable
	}
	return strings.TrimSpace(link), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
