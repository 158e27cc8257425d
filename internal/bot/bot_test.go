package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/regbot/internal/registration"
	"github.com/m3rciful/regbot/internal/users"
)

type sentMessage struct {
	text   string
	markup *tele.ReplyMarkup
}

// recordingContext is a real update context whose sends are captured
// instead of going to the Bot API.
type recordingContext struct {
	tele.Context
	sent *[]sentMessage
}

func (r recordingContext) Send(what any, opts ...any) error {
	msg := sentMessage{text: what.(string)}
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			msg.markup = so.ReplyMarkup
		}
	}
	*r.sent = append(*r.sent, msg)
	return nil
}

func newBot(t *testing.T) *tele.Bot {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return b
}

func message(b *tele.Bot, sent *[]sentMessage, user *tele.User, text string, contact *tele.Contact) tele.Context {
	return recordingContext{
		Context: b.NewContext(tele.Update{ID: 1, Message: &tele.Message{
			Text:    text,
			Contact: contact,
			Sender:  user,
			Chat:    &tele.Chat{ID: user.ID, Type: tele.ChatPrivate},
		}}),
		sent: sent,
	}
}

func TestInputFrom(t *testing.T) {
	b := newBot(t)
	var sent []sentMessage
	alice := &tele.User{ID: 7}

	in, ok := inputFrom(message(b, &sent, alice, "  alice@example.com ", nil))
	require.True(t, ok)
	assert.Equal(t, registration.Input{UserID: 7, Text: "  alice@example.com "}, in)

	in, ok = inputFrom(message(b, &sent, alice, "", &tele.Contact{PhoneNumber: " +62811 ", UserID: 7}))
	require.True(t, ok)
	assert.Equal(t, registration.Input{UserID: 7, Text: "Ya", Phone: "+62811"}, in)

	in, ok = inputFrom(message(b, &sent, alice, "", &tele.Contact{PhoneNumber: "+62899", UserID: 8}))
	require.True(t, ok)
	assert.Equal(t, registration.Input{UserID: 7}, in)
}

func TestMarkupFor(t *testing.T) {
	assert.Nil(t, markupFor(registration.KeyboardNone))
	assert.True(t, markupFor(registration.KeyboardForceReply).ForceReply)
	assert.True(t, markupFor(registration.KeyboardRemove).RemoveKeyboard)

	yesNo := markupFor(registration.KeyboardYesNo)
	require.Len(t, yesNo.ReplyKeyboard, 2)
	assert.Equal(t, "Tidak", yesNo.ReplyKeyboard[0][0].Text)
	assert.Equal(t, "Ya", yesNo.ReplyKeyboard[1][0].Text)
	assert.True(t, yesNo.OneTimeKeyboard)
	assert.True(t, yesNo.ResizeKeyboard)

	contact := markupFor(registration.KeyboardYesNoContact)
	require.Len(t, contact.ReplyKeyboard, 2)
	assert.True(t, contact.ReplyKeyboard[1][0].Contact)
}

type fakeWelcomer struct {
	profiles []users.Profile
	err      error
}

func (f *fakeWelcomer) Welcome(_ context.Context, p users.Profile) (users.User, error) {
	f.profiles = append(f.profiles, p)
	return users.User{TelegramID: p.TelegramID}, f.err
}

// memoryUsers satisfies registration.UserRepository.
type memoryUsers struct {
	mu    sync.Mutex
	users map[int64]users.User
}

func (m *memoryUsers) GetUser(_ context.Context, id int64) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

func (m *memoryUsers) Register(_ context.Context, id int64, email, phone string) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.Email.String, u.Email.Valid = email, true
	u.Phone.String, u.Phone.Valid = phone, phone != ""
	u.Status = users.StatusRegistered
	m.users[id] = u
	return u, nil
}

type HandlersSuite struct {
	suite.Suite
	bot      *tele.Bot
	repo     *memoryUsers
	welcomer *fakeWelcomer
	handlers *Handlers
	sent     []sentMessage
	alice    *tele.User
}

func (s *HandlersSuite) SetupTest() {
	s.bot = newBot(s.T())
	s.alice = &tele.User{ID: 7, Username: "alice", FirstName: "Alice"}
	s.repo = &memoryUsers{users: map[int64]users.User{7: {TelegramID: 7, Status: users.StatusReturned}}}
	s.welcomer = &fakeWelcomer{}
	s.sent = nil

	engine, err := registration.NewEngine(registration.NewMemoryStore(), registration.NewMemoryLocker(), s.repo)
	s.Require().NoError(err)
	s.handlers = NewHandlers(s.welcomer, engine)
}

func (s *HandlersSuite) text(text string) tele.Context {
	return message(s.bot, &s.sent, s.alice, text, nil)
}

func (s *HandlersSuite) lastSent() sentMessage {
	s.Require().NotEmpty(s.sent)
	return s.sent[len(s.sent)-1]
}

func (s *HandlersSuite) TestStartAndHelp() {
	s.Require().NoError(s.handlers.Start(s.text("/start")))
	s.Equal(textStart, s.lastSent().text)
	s.Equal([]users.Profile{{TelegramID: 7, Username: "alice", FirstName: "Alice"}}, s.welcomer.profiles)

	s.welcomer.err = errors.New("db down")
	s.Require().NoError(s.handlers.Start(s.text("/start")))
	s.Equal(textStart, s.lastSent().text)

	s.Require().NoError(s.handlers.Help(s.text("/help")))
	s.Equal(textHelp, s.lastSent().text)
}

func (s *HandlersSuite) TestRegistrationConversation() {
	ctx := context.Background()
	s.Require().NoError(s.handlers.Register(s.text("/register")))
	s.Equal(registration.TextEmailConsentPrompt, s.lastSent().text)
	s.True(s.handlers.InProgress(ctx, 7))

	s.Require().NoError(s.handlers.HandleInput(s.text("ya")))
	s.Equal(registration.TextEmailPrompt, s.lastSent().text)
	s.True(s.lastSent().markup.ForceReply)

	s.Require().NoError(s.handlers.HandleInput(s.text("alice@example.com")))
	s.Equal(registration.TextPhoneConsentPrompt, s.lastSent().text)
	s.True(s.lastSent().markup.ReplyKeyboard[1][0].Contact)

	s.Require().NoError(s.handlers.HandleInput(message(s.bot, &s.sent, s.alice, "", &tele.Contact{PhoneNumber: "+62811", UserID: 7})))
	s.Equal(registration.TextCompleted, s.lastSent().text)
	s.True(s.lastSent().markup.RemoveKeyboard)
	s.False(s.handlers.InProgress(ctx, 7))

	u, err := s.repo.GetUser(ctx, 7)
	s.Require().NoError(err)
	s.Equal(users.StatusRegistered, u.Status)
	s.Equal("alice@example.com", u.Email.String)
	s.Equal("+62811", u.Phone.String)

	s.Require().NoError(s.handlers.Register(s.text("/register")))
	s.Equal(registration.TextAlreadyRegistered, s.lastSent().text)

	n, err := s.handlers.flow.ActiveSessions(ctx)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *HandlersSuite) TestSessions() {
	s.Require().NoError(s.handlers.Register(s.text("/register")))
	s.Require().NoError(s.handlers.Sessions(s.text("/sessions")))
	s.Equal("Sesi pendaftaran aktif: 1", s.lastSent().text)
}

func (s *HandlersSuite) TestUnknownUserIsTurnedAway() {
	bob := &tele.User{ID: 99}
	s.Require().NoError(s.handlers.Register(message(s.bot, &s.sent, bob, "/register", nil)))
	s.Equal(registration.TextNotStarted, s.lastSent().text)
	s.False(s.handlers.InProgress(context.Background(), 99))
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}
