package telegram

import (
	"strings"

	"github.com/go-telegram/bot/models"
)

// Action is the closed set of commands and button identifiers the router
// dispatches on.
type Action int

const (
	ActionUnknown Action = iota
	ActionStart
	ActionHelp
	ActionStats
	ActionUnregisterGroup
	ActionRegisterGroup
	ActionListAllGroups
	ActionLogOnToday
	ActionWhoIsOnToday
	ActionHowToAddGroup
	ActionAdminInfo
	ActionRules
	ActionMoreInfo
)

var actionNames = map[Action]string{
	ActionStart:           "start",
	ActionHelp:            "help",
	ActionStats:           "stats",
	ActionUnregisterGroup: "UnregisterGroup",
	ActionRegisterGroup:   "RegisterGroup",
	ActionListAllGroups:   "ListAllGroups",
	ActionLogOnToday:      "LogOnToday",
	ActionWhoIsOnToday:    "WhoIsOnToday",
	ActionHowToAddGroup:   "HowToAddGroup",
	ActionAdminInfo:       "AdminInfo",
	ActionRules:           "Rules",
	ActionMoreInfo:        "MoreInfo",
}

var actionLabels = map[Action]string{
	ActionUnregisterGroup: "Unregister group",
	ActionRegisterGroup:   "Register group",
	ActionListAllGroups:   "List all groups",
	ActionLogOnToday:      "Log on today",
	ActionWhoIsOnToday:    "Who is on today",
	ActionHowToAddGroup:   "How to add a group",
	ActionAdminInfo:       "Admin info",
	ActionRules:           "Rules",
	ActionMoreInfo:        "More info",
}

var actionsByName = func() map[string]Action {
	m := make(map[string]Action, len(actionNames))
	for action, name := range actionNames {
		m[name] = action
	}
	return m
}()

// ParseAction maps an identifier to its Action. Matching is exact; anything
// else yields ActionUnknown.
func ParseAction(identifier string) Action {
	if action, ok := actionsByName[identifier]; ok {
		return action
	}
	return ActionUnknown
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// Label is the button caption for the action.
func (a Action) Label() string {
	if label, ok := actionLabels[a]; ok {
		return label
	}
	return a.String()
}

// parseCommand extracts the command name from "/start" or "/start@SomeBot args".
func parseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}

	name := strings.TrimPrefix(text, "/")
	if i := strings.IndexAny(name, " \n\t"); i >= 0 {
		name = name[:i]
	}
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name), name != ""
}

func commandAction(name string) Action {
	switch name {
	case "start":
		return ActionStart
	case "help":
		return ActionHelp
	case "stats":
		return ActionStats
	default:
		return ActionUnknown
	}
}

func keyboard(actions ...Action) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(actions))
	for _, action := range actions {
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         action.Label(),
			CallbackData: action.String(),
		}})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func privateMenu() *models.InlineKeyboardMarkup {
	return keyboard(
		ActionLogOnToday,
		ActionWhoIsOnToday,
		ActionListAllGroups,
		ActionHowToAddGroup,
		ActionRules,
		ActionMoreInfo,
	)
}

func groupMenu(active bool) *models.InlineKeyboardMarkup {
	if active {
		return keyboard(ActionUnregisterGroup, ActionLogOnToday)
	}
	return keyboard(ActionRegisterGroup, ActionLogOnToday)
}

func joinButton(link string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{{Text: "join", URL: link}}},
	}
}
