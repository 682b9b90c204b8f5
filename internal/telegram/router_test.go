package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"boostskilla_bot/internal/domain"
	"boostskilla_bot/internal/feature/admin"
	"boostskilla_bot/internal/feature/group"
	"boostskilla_bot/internal/feature/login"
	"boostskilla_bot/internal/metrics"
	"boostskilla_bot/internal/store"
	"boostskilla_bot/internal/texts"
)

const groupChatID = int64(42)

var (
	alice = models.User{ID: 7, FirstName: "alice"}
	boss  = models.User{ID: 1, Username: "boss", FirstName: "Big", LastName: "Boss"}
)

type routerFixture struct {
	router  *Router
	store   *store.SQLStore
	gateway *fakeGateway
	hook    *logtest.Hook
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)

	hookLogger, hook := logtest.NewNullLogger()
	hookLogger.SetLevel(logrus.DebugLevel)
	logger := logrus.NewEntry(hookLogger)

	sqlStore, err := store.NewSQLStore(context.Background(), db, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlStore.Close(context.Background()) })

	groups := sqlStore.Groups()
	logins := sqlStore.Logins()

	router, err := NewRouter(Dependencies{
		Groups: group.NewRegistrar(groups, logger),
		Logins: login.NewTracker(logins, logger,
			login.WithClock(func() time.Time { return time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC) }),
			login.WithLocation(time.UTC),
		),
		Admins:  admin.NewDirectory([]string{"@boss"}, store.NewStatsProvider(groups, logins), logger),
		Texts:   texts.Static{Rules: "Be kind.", MoreInfo: texts.NoMoreInfo},
		Metrics: metrics.New(),
		Logger:  logger,
	})
	require.NoError(t, err)

	return &routerFixture{
		router:  router,
		store:   sqlStore,
		gateway: newFakeGateway(),
		hook:    hook,
	}
}

func (f *routerFixture) handle(update *models.Update) {
	f.router.HandleUpdate(context.Background(), f.gateway, update)
}

func (f *routerFixture) group(t *testing.T, chatID int64) domain.Group {
	t.Helper()
	g, err := f.store.Groups().FindByChatID(context.Background(), chatID)
	require.NoError(t, err)
	return g
}

func callback(chatID int64, chatType models.ChatType, title string, user models.User, data string) *models.Update {
	return &models.Update{
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb-" + data,
			From: user,
			Data: data,
			Message: models.MaybeInaccessibleMessage{
				Type: models.MaybeInaccessibleMessageTypeMessage,
				Message: &models.Message{
					ID:   77,
					Chat: models.Chat{ID: chatID, Type: chatType, Title: title},
				},
			},
		},
	}
}

func groupCallback(title, data string) *models.Update {
	return callback(groupChatID, models.ChatTypeSupergroup, title, alice, data)
}

func privateCallback(user models.User, data string) *models.Update {
	return callback(user.ID, models.ChatTypePrivate, "", user, data)
}

func command(chatID int64, chatType models.ChatType, title string, user models.User, text string) *models.Update {
	return &models.Update{
		Message: &models.Message{
			ID:   5,
			From: &user,
			Chat: models.Chat{ID: chatID, Type: chatType, Title: title},
			Text: text,
		},
	}
}

func TestRegisterGroupStoresRecord(t *testing.T) {
	f := newRouterFixture(t)
	f.gateway.link = "https://t.me/joinchat/abc"
	f.gateway.chats[groupChatID] = &models.ChatFullInfo{ID: groupChatID, Title: "Widgets", Description: "widget talk"}

	f.handle(groupCallback("Widgets", "RegisterGroup"))

	g := f.group(t, groupChatID)
	assert.True(t, g.Active)
	assert.Equal(t, "https://t.me/joinchat/abc", g.Link)
	assert.Equal(t, "Widgets", g.Name)
	assert.Equal(t, "widget talk", g.Description)
	assert.Equal(t, "alice", g.Admin)

	edits := f.gateway.editTexts()
	require.Len(t, edits, 1)
	assert.Equal(t, "Register group: Widgets", edits[0].Text)
	assert.Equal(t, 77, edits[0].MessageID)
	assert.Equal(t, []string{"cb-RegisterGroup"}, f.gateway.answeredIDs())
}

func TestRegisterGroupTwiceKeepsSingleActiveRecord(t *testing.T) {
	f := newRouterFixture(t)
	f.gateway.link = "https://t.me/joinchat/abc"
	f.gateway.chats[groupChatID] = &models.ChatFullInfo{ID: groupChatID, Title: "Widgets"}

	f.handle(groupCallback("Widgets", "RegisterGroup"))
	f.handle(groupCallback("Widgets", "RegisterGroup"))

	total, err := f.store.Groups().Count(context.Background(), false)
	require.NoError(t, err)
	active, err := f.store.Groups().Count(context.Background(), true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.EqualValues(t, 1, active)
	assert.Len(t, f.gateway.editTexts(), 2)
}

func TestRegisterGroupNotUpgradeable(t *testing.T) {
	tests := []struct {
		name    string
		link    string
		linkErr error
	}{
		{name: "bad request", linkErr: fmt.Errorf("%w, Bad Request: not enough rights to manage chat invite link", bot.ErrorBadRequest)},
		{name: "forbidden", linkErr: fmt.Errorf("%w, Forbidden: bot is not a member", bot.ErrorForbidden)},
		{name: "empty link"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t)
			f.gateway.link = tt.link
			f.gateway.linkErr = tt.linkErr

			f.handle(groupCallback("Widgets", "RegisterGroup"))

			sent := f.gateway.sentMessages()
			require.Len(t, sent, 1)
			assert.Equal(t, texts.NotUpgradeable, sent[0].Text)
			markup, ok := sent[0].ReplyMarkup.(*models.InlineKeyboardMarkup)
			require.True(t, ok)
			assert.Equal(t, "HowToAddGroup", markup.InlineKeyboard[0][0].CallbackData)

			exists, err := f.store.Groups().Exists(context.Background(), groupChatID)
			require.NoError(t, err)
			assert.False(t, exists)
			assert.Empty(t, f.gateway.editTexts())
		})
	}
}

func TestUnregisterScenario(t *testing.T) {
	f := newRouterFixture(t)
	f.gateway.link = "https://t.me/joinchat/abc"
	f.gateway.chats[groupChatID] = &models.ChatFullInfo{ID: groupChatID, Title: "Widgets"}

	f.handle(groupCallback("Widgets", "RegisterGroup"))
	f.handle(groupCallback("Widgets", "UnregisterGroup"))

	assert.False(t, f.group(t, groupChatID).Active)
	assert.Equal(t, "removed group: Widgets", f.gateway.lastText())

	before := f.group(t, groupChatID)
	f.handle(groupCallback("Widgets", "UnregisterGroup"))

	assert.Equal(t, "group Widgets is not active", f.gateway.lastText())
	assert.Equal(t, before, f.group(t, groupChatID))

	f.handle(groupCallback("Widgets", "RegisterGroup"))
	assert.True(t, f.group(t, groupChatID).Active)

	total, err := f.store.Groups().Count(context.Background(), false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestUnregisterUnknownGroupCreatesNothing(t *testing.T) {
	f := newRouterFixture(t)

	f.handle(groupCallback("Widgets", "UnregisterGroup"))

	assert.Equal(t, "group Widgets is unknown", f.gateway.lastText())
	exists, err := f.store.Groups().Exists(context.Background(), groupChatID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLogOnAndWhoIsOnScenario(t *testing.T) {
	f := newRouterFixture(t)

	f.handle(callback(100, models.ChatTypeSupergroup, "Widget", alice, "LogOnToday"))
	assert.Equal(t, "You have logged in as doing Widget", f.gateway.lastText())

	f.handle(privateCallback(alice, "WhoIsOnToday"))
	report := f.gateway.lastMessage()
	assert.Equal(t, models.ParseModeHTML, report.ParseMode)
	assert.True(t, strings.HasPrefix(report.Text, "<pre>20240310\n"))
	assert.Contains(t, report.Text, "alice           | Widget")
	assert.Contains(t, report.Text, "There are 1 logged on users")

	f.handle(callback(200, models.ChatTypeSupergroup, "Gadget", alice, "LogOnToday"))
	f.handle(privateCallback(alice, "WhoIsOnToday"))

	report = f.gateway.lastMessage()
	assert.Contains(t, report.Text, "alice           | Gadget")
	assert.NotContains(t, report.Text, "Widget")
	assert.Contains(t, report.Text, "There are 1 logged on users")
}

func TestLogOnInPrivateChatUsesDefaultTopic(t *testing.T) {
	f := newRouterFixture(t)

	f.handle(privateCallback(boss, "LogOnToday"))

	assert.Equal(t, "You have logged in as doing "+login.DefaultTopic, f.gateway.lastText())

	logins, err := f.store.Logins().FindByUser(context.Background(), "@boss")
	require.NoError(t, err)
	require.Len(t, logins, 1)
	assert.Equal(t, "20240310", logins[0].Date)
}

func TestWhoIsOnEscapesHTML(t *testing.T) {
	f := newRouterFixture(t)

	f.handle(callback(100, models.ChatTypeSupergroup, "<b>R&D</b>", alice, "LogOnToday"))
	f.handle(privateCallback(alice, "WhoIsOnToday"))

	assert.Contains(t, f.gateway.lastText(), "&lt;b&gt;R&amp;D&lt;/b&gt;")
}

func TestStartMenus(t *testing.T) {
	t.Run("private non-admin", func(t *testing.T) {
		f := newRouterFixture(t)
		f.handle(command(alice.ID, models.ChatTypePrivate, "", alice, "/start"))

		sent := f.gateway.sentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, []string{"LogOnToday", "WhoIsOnToday", "ListAllGroups", "HowToAddGroup", "Rules", "MoreInfo"}, callbackData(t, sent[0]))
	})

	t.Run("private admin", func(t *testing.T) {
		f := newRouterFixture(t)
		f.handle(command(boss.ID, models.ChatTypePrivate, "", boss, "/start"))

		sent := f.gateway.sentMessages()
		require.Len(t, sent, 2)
		assert.Equal(t, "Hi @boss, you can also see admin views", sent[1].Text)
		assert.Equal(t, []string{"AdminInfo"}, callbackData(t, sent[1]))
	})

	t.Run("group follows active state", func(t *testing.T) {
		f := newRouterFixture(t)
		f.gateway.link = "https://t.me/joinchat/abc"
		f.gateway.chats[groupChatID] = &models.ChatFullInfo{ID: groupChatID, Title: "Widgets"}

		f.handle(command(groupChatID, models.ChatTypeSupergroup, "Widgets", alice, "/start@boostskilla_bot"))
		assert.Equal(t, []string{"RegisterGroup", "LogOnToday"}, callbackData(t, f.gateway.lastMessage()))

		f.handle(groupCallback("Widgets", "RegisterGroup"))
		f.handle(command(groupChatID, models.ChatTypeSupergroup, "Widgets", alice, "/start"))
		assert.Equal(t, []string{"UnregisterGroup", "LogOnToday"}, callbackData(t, f.gateway.lastMessage()))
	})
}

func TestListAllGroups(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()
	groups := f.store.Groups()

	for _, g := range []domain.Group{
		{Name: "Stored One", ChatID: -1001, Link: "https://t.me/joinchat/one", Admin: "@alice", Active: true},
		{Name: "Gone", ChatID: -1002, Link: "https://t.me/joinchat/gone", Active: false},
		{Name: "Stored Three", Description: "kept", ChatID: -1003, Link: "https://t.me/joinchat/three", Admin: "@bob", Active: true},
	} {
		_, err := groups.Insert(ctx, g)
		require.NoError(t, err)
	}
	f.gateway.chats[-1001] = &models.ChatFullInfo{ID: -1001, Title: "Live One", Description: "fresh", InviteLink: "https://t.me/+live"}

	f.handle(privateCallback(alice, "ListAllGroups"))

	sent := f.gateway.sentMessages()
	require.Len(t, sent, 4)
	assert.Equal(t, "The list of groups is:", sent[0].Text)
	assert.Equal(t, "Name: Live One.\nDescription: fresh.\nChat admin: @alice", sent[1].Text)
	assert.Equal(t, "https://t.me/+live", sent[1].ReplyMarkup.(*models.InlineKeyboardMarkup).InlineKeyboard[0][0].URL)
	assert.Equal(t, "Name: Stored Three.\nDescription: kept.\nChat admin: @bob", sent[2].Text)
	assert.Equal(t, "https://t.me/joinchat/three", sent[2].ReplyMarkup.(*models.InlineKeyboardMarkup).InlineKeyboard[0][0].URL)
	assert.Equal(t, "There are 2 active groups", sent[3].Text)
}

func TestStaticTextActions(t *testing.T) {
	tests := []struct {
		update *models.Update
		want   string
	}{
		{privateCallback(alice, "Rules"), "Be kind."},
		{privateCallback(alice, "MoreInfo"), texts.NoMoreInfo},
		{privateCallback(alice, "HowToAddGroup"), texts.HowToAddGroup},
		{command(alice.ID, models.ChatTypePrivate, "", alice, "/help"), texts.Help},
		{privateCallback(alice, "AdminInfo"), texts.NotAdmin},
		{privateCallback(boss, "AdminInfo"), texts.AdminInfo},
		{command(alice.ID, models.ChatTypePrivate, "", alice, "/stats"), texts.NotAdmin},
		{privateCallback(alice, "Bogus"), "you have asked to: Bogus"},
		{privateCallback(alice, " Bogus "), "you have asked to:  Bogus "},
		{privateCallback(alice, " RegisterGroup "), "you have asked to:  RegisterGroup "},
	}

	for _, tt := range tests {
		f := newRouterFixture(t)
		f.handle(tt.update)
		assert.Equal(t, tt.want, f.gateway.lastText())
	}
}

func TestStatsForAdmin(t *testing.T) {
	f := newRouterFixture(t)
	f.gateway.link = "https://t.me/joinchat/abc"
	f.gateway.chats[groupChatID] = &models.ChatFullInfo{ID: groupChatID, Title: "Widgets"}

	f.handle(groupCallback("Widgets", "RegisterGroup"))
	f.handle(privateCallback(alice, "LogOnToday"))
	f.handle(command(boss.ID, models.ChatTypePrivate, "", boss, "/stats"))

	assert.Equal(t, "Active groups: 1\nTotal groups: 1\nLogged on today (20240310): 1", f.gateway.lastText())
}

func TestIgnoresPlainMessagesAndUnknownCommands(t *testing.T) {
	f := newRouterFixture(t)

	f.handle(command(alice.ID, models.ChatTypePrivate, "", alice, "hello there"))
	f.handle(command(alice.ID, models.ChatTypePrivate, "", alice, "/unknown"))

	assert.Empty(t, f.gateway.sentMessages())
}

func TestStoreFailureSendsApologyAndLogsContext(t *testing.T) {
	f := newRouterFixture(t)
	require.NoError(t, f.store.Close(context.Background()))

	f.handle(callback(100, models.ChatTypeSupergroup, "Widget", alice, "LogOnToday"))

	assert.Equal(t, texts.Apology, f.gateway.lastText())

	var failed *logrus.Entry
	for _, entry := range f.hook.AllEntries() {
		if entry.Data["event"] == "action_failed" {
			failed = entry
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "LogOnToday", failed.Data["action"])
	assert.Equal(t, int64(100), failed.Data["chat_id"])
	assert.Equal(t, int64(7), failed.Data["user_id"])
	assert.Equal(t, "alice", failed.Data["user"])
}

func TestCallbackAnsweredEvenWhenHandlerFails(t *testing.T) {
	f := newRouterFixture(t)
	f.gateway.linkErr = errors.New("network unreachable")

	f.handle(groupCallback("Widgets", "RegisterGroup"))

	assert.Equal(t, []string{"cb-RegisterGroup"}, f.gateway.answeredIDs())
	assert.Equal(t, texts.Apology, f.gateway.lastText())
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := NewRouter(Dependencies{})
	assert.Error(t, err)
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in   string
		want Action
	}{
		{"RegisterGroup", ActionRegisterGroup},
		{"UnregisterGroup", ActionUnregisterGroup},
		{" UnregisterGroup ", ActionUnknown},
		{"WhoIsOnToday", ActionWhoIsOnToday},
		{"MoreInfo", ActionMoreInfo},
		{"start", ActionStart},
		{"registergroup", ActionUnknown},
		{"", ActionUnknown},
	}

	for _, tt := range tests {
		if got := ParseAction(tt.in); got != tt.want {
			t.Fatalf("ParseAction(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for action := ActionStart; action <= ActionMoreInfo; action++ {
		if got := ParseAction(action.String()); got != action {
			t.Fatalf("round trip of %v gave %v", action, got)
		}
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"/start", "start", true},
		{"/Start@boostskilla_bot", "start", true},
		{"/help me please", "help", true},
		{"start", "", false},
		{"/", "", false},
	}

	for _, tt := range tests {
		got, ok := parseCommand(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Fatalf("parseCommand(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		user models.User
		want string
	}{
		{models.User{ID: 1, Username: "alice", FirstName: "Alice"}, "@alice"},
		{models.User{ID: 2, FirstName: "Bob", LastName: "Builder"}, "Bob Builder"},
		{models.User{ID: 3, FirstName: " Carol "}, "Carol"},
		{models.User{ID: 4}, "4"},
	}

	for _, tt := range tests {
		user := tt.user
		if got := displayName(&user); got != tt.want {
			t.Fatalf("displayName(%+v) = %q, want %q", tt.user, got, tt.want)
		}
	}
}

func callbackData(t *testing.T, params *bot.SendMessageParams) []string {
	t.Helper()

	markup, ok := params.ReplyMarkup.(*models.InlineKeyboardMarkup)
	require.True(t, ok, "expected inline keyboard")

	var data []string
	for _, row := range markup.InlineKeyboard {
		for _, button := range row {
			data = append(data, button.CallbackData)
		}
	}
	return data
}

type fakeGateway struct {
	mu       sync.Mutex
	sent     []*bot.SendMessageParams
	edits    []*bot.EditMessageTextParams
	answered []string
	chats    map[int64]*models.ChatFullInfo
	link     string
	linkErr  error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{chats: make(map[int64]*models.ChatFullInfo)}
}

func (g *fakeGateway) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, params)
	return &models.Message{ID: len(g.sent)}, nil
}

func (g *fakeGateway) EditMessageText(_ context.Context, params *bot.EditMessageTextParams) (*models.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edits = append(g.edits, params)
	return &models.Message{ID: params.MessageID}, nil
}

func (g *fakeGateway) GetChat(_ context.Context, params *bot.GetChatParams) (*models.ChatFullInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, _ := params.ChatID.(int64)
	chat, ok := g.chats[id]
	if !ok {
		return nil, fmt.Errorf("%w, Bad Request: chat not found", bot.ErrorBadRequest)
	}
	return chat, nil
}

func (g *fakeGateway) ExportChatInviteLink(context.Context, *bot.ExportChatInviteLinkParams) (string, error) {
	return g.link, g.linkErr
}

func (g *fakeGateway) AnswerCallbackQuery(_ context.Context, params *bot.AnswerCallbackQueryParams) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.answered = append(g.answered, params.CallbackQueryID)
	return true, nil
}

func (g *fakeGateway) sentMessages() []*bot.SendMessageParams {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*bot.SendMessageParams(nil), g.sent...)
}

func (g *fakeGateway) editTexts() []*bot.EditMessageTextParams {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*bot.EditMessageTextParams(nil), g.edits...)
}

func (g *fakeGateway) answeredIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.answered...)
}

func (g *fakeGateway) lastMessage() *bot.SendMessageParams {
	sent := g.sentMessages()
	if len(sent) == 0 {
		return &bot.SendMessageParams{}
	}
	return sent[len(sent)-1]
}

func (g *fakeGateway) lastText() string {
	return g.lastMessage().Text
}
