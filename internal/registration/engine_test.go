package registration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/m3rciful/regbot/internal/registration/mocks"
	"github.com/m3rciful/regbot/internal/users"
)

type recorder struct {
	mu      sync.Mutex
	replies []Reply
}

func (r *recorder) Reply(reply Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, reply)
	return nil
}

func (r *recorder) last() Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.replies) == 0 {
		return Reply{}
	}
	return r.replies[len(r.replies)-1]
}

func (r *recorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.replies))
	for i, reply := range r.replies {
		out[i] = reply.Text
	}
	return out
}

type EngineSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	repo   *mocks.MockUserRepository
	store  *MemoryStore
	locker *MemoryLocker
	engine *Engine
	out    *recorder
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.repo = mocks.NewMockUserRepository(s.ctrl)
	s.store = NewMemoryStore()
	s.locker = NewMemoryLocker()
	var err error
	s.engine, err = NewEngine(s.store, s.locker, s.repo, WithLockWait(time.Second))
	s.Require().NoError(err)
	s.out = &recorder{}
}

func (s *EngineSuite) TearDownTest() {
	s.ctrl.Finish()
}

const uid int64 = 42

func (s *EngineSuite) knownUser(status users.Status) {
	s.repo.EXPECT().GetUser(gomock.Any(), uid).
		Return(users.User{TelegramID: uid, Status: status}, nil)
}

func (s *EngineSuite) start() {
	s.knownUser(users.StatusNew)
	s.Require().NoError(s.engine.Start(context.Background(), uid, s.out))
	s.Require().Equal(Reply{Text: TextEmailConsentPrompt, Keyboard: KeyboardYesNo}, s.out.last())
}

func (s *EngineSuite) send(text string) Reply {
	return s.sendInput(Input{UserID: uid, Text: text})
}

func (s *EngineSuite) sendInput(in Input) Reply {
	s.Require().NoError(s.engine.Handle(context.Background(), in, s.out))
	return s.out.last()
}

func (s *EngineSuite) session() (Session, bool) {
	sess, err := s.store.Get(context.Background(), uid)
	if errors.Is(err, ErrNoSession) {
		return Session{}, false
	}
	s.Require().NoError(err)
	return sess, true
}

// reachPhoneConsent walks a fresh user up to the phone consent step.
func (s *EngineSuite) reachPhoneConsent() {
	s.start()
	s.Require().Equal(TextEmailPrompt, s.send("ya").Text)
	s.Require().Equal(TextPhoneConsentPrompt, s.send("a@b.co").Text)
}

func (s *EngineSuite) TestNew() {
	s.Run("nil store", func() {
		_, err := NewEngine(nil, s.locker, s.repo)
		s.ErrorContains(err, "session store is required")
	})
	s.Run("nil locker", func() {
		_, err := NewEngine(s.store, nil, s.repo)
		s.ErrorContains(err, "locker is required")
	})
	s.Run("nil repository", func() {
		_, err := NewEngine(s.store, s.locker, nil)
		s.ErrorContains(err, "user repository is required")
	})
}

func (s *EngineSuite) TestEntryGuard() {
	ctx := context.Background()

	s.Run("unknown user", func() {
		s.repo.EXPECT().GetUser(gomock.Any(), uid).Return(users.User{}, users.ErrNotFound)
		s.Require().NoError(s.engine.Start(ctx, uid, s.out))
		s.Equal(Reply{Text: TextNotStarted}, s.out.last())
		_, ok := s.session()
		s.False(ok)
	})

	s.Run("repository failure", func() {
		s.repo.EXPECT().GetUser(gomock.Any(), uid).Return(users.User{}, errors.New("db down"))
		s.Require().NoError(s.engine.Start(ctx, uid, s.out))
		s.Equal(TextNotStarted, s.out.last().Text)
		_, ok := s.session()
		s.False(ok)
	})

	s.Run("already registered", func() {
		s.knownUser(users.StatusRegistered)
		s.Require().NoError(s.engine.Start(ctx, uid, s.out))
		s.Equal(Reply{Text: TextAlreadyRegistered}, s.out.last())
		_, ok := s.session()
		s.False(ok)
	})

	s.Run("started twice", func() {
		s.start()
		s.knownUser(users.StatusReturned)
		s.Require().NoError(s.engine.Start(ctx, uid, s.out))
		s.Equal(Reply{Text: TextAlreadyInProgress}, s.out.last())

		n, err := s.store.Count(ctx)
		s.Require().NoError(err)
		s.Equal(1, n)
		s.True(s.engine.InProgress(ctx, uid))
	})
}

func (s *EngineSuite) TestEmailConsent() {
	s.start()

	s.Run("out of grammar", func() {
		s.Equal(Reply{Text: TextChooseYesNo}, s.send("abc"))
		sess, ok := s.session()
		s.Require().True(ok)
		s.Equal(StepAwaitingEmailConsent, sess.Step)
	})

	s.Run("yes advances", func() {
		s.Equal(Reply{Text: TextEmailPrompt, Keyboard: KeyboardForceReply}, s.send(" YA "))
		sess, ok := s.session()
		s.Require().True(ok)
		s.Equal(StepAwaitingEmail, sess.Step)
	})
}

func (s *EngineSuite) TestDeclineFirstConsent() {
	s.start()

	s.Equal(Reply{Text: TextCancelled, Keyboard: KeyboardRemove}, s.send("tidak"))
	_, ok := s.session()
	s.False(ok)
	s.False(s.engine.InProgress(context.Background(), uid))

	s.Equal(Reply{Text: TextNoSession}, s.send("hello"))
}

func (s *EngineSuite) TestEmailAlreadyProvided() {
	ctx := context.Background()
	_, err := s.store.Create(ctx, uid)
	s.Require().NoError(err)
	_, err = s.store.Mutate(ctx, uid, WithEmail("a@b.co"))
	s.Require().NoError(err)

	s.Equal(Reply{Text: TextEmailAlreadyProvided}, s.send("ya"))
	sess, ok := s.session()
	s.Require().True(ok)
	s.Equal(StepAwaitingEmailConsent, sess.Step)
}

func (s *EngineSuite) TestEmailStep() {
	s.start()
	s.send("ya")

	s.Equal(Reply{Text: TextInvalidEmail}, s.send("not-an-email"))
	sess, ok := s.session()
	s.Require().True(ok)
	s.Equal(StepAwaitingEmail, sess.Step)
	s.Empty(sess.Email)

	s.Equal(Reply{Text: TextPhoneConsentPrompt, Keyboard: KeyboardYesNoContact}, s.send("  a@b.co "))
	sess, ok = s.session()
	s.Require().True(ok)
	s.Equal(StepAwaitingPhoneConsent, sess.Step)
	s.Equal("a@b.co", sess.Email)
}

func (s *EngineSuite) TestPhoneConsentOutOfGrammar() {
	s.reachPhoneConsent()
	s.Equal(Reply{Text: TextChooseYesNo}, s.send("maybe"))
	sess, ok := s.session()
	s.Require().True(ok)
	s.Equal(StepAwaitingPhoneConsent, sess.Step)
}

func (s *EngineSuite) TestCompletion() {
	cases := []struct {
		name      string
		in        Input
		wantPhone string
	}{
		{name: "declined", in: Input{UserID: uid, Text: "tidak", Phone: "+62811"}},
		{name: "unavailable", in: Input{UserID: uid, Text: "ya"}},
		{name: "placeholder zero", in: Input{UserID: uid, Text: "ya", Phone: "0"}},
		{name: "accepted", in: Input{UserID: uid, Text: "ya", Phone: "+62811"}, wantPhone: "+62811"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.reachPhoneConsent()
			s.repo.EXPECT().Register(gomock.Any(), uid, "a@b.co", tc.wantPhone).
				Return(users.User{TelegramID: uid, Status: users.StatusRegistered}, nil).
				Times(1)

			s.Equal(Reply{Text: TextCompleted, Keyboard: KeyboardRemove}, s.sendInput(tc.in))
			_, ok := s.session()
			s.False(ok)

			// Redelivery finds no session and never registers twice.
			s.Equal(Reply{Text: TextNoSession}, s.sendInput(tc.in))
		})
	}
}

func (s *EngineSuite) TestPersistFailureStillCompletes() {
	s.reachPhoneConsent()
	s.repo.EXPECT().Register(gomock.Any(), uid, "a@b.co", "").
		Return(users.User{}, errors.New("connection reset"))

	s.Equal(TextCompleted, s.send("tidak").Text)
	_, ok := s.session()
	s.False(ok)
}

func (s *EngineSuite) TestFinalizingSessionIsNotResumed() {
	ctx := context.Background()
	_, err := s.store.Create(ctx, uid)
	s.Require().NoError(err)
	_, err = s.store.Mutate(ctx, uid, WithEmail("a@b.co"), AdvanceTo(StepFinalizing))
	s.Require().NoError(err)

	s.Equal(Reply{Text: TextNoSession}, s.send("ya"))
	_, ok := s.session()
	s.False(ok, "stale finalizing session should be dropped")
}

func (s *EngineSuite) TestRegisterAfterStaleFinalizing() {
	ctx := context.Background()
	_, err := s.store.Create(ctx, uid)
	s.Require().NoError(err)
	_, err = s.store.Mutate(ctx, uid, WithEmail("a@b.co"), AdvanceTo(StepFinalizing))
	s.Require().NoError(err)

	s.start()
	sess, ok := s.session()
	s.Require().True(ok)
	s.Equal(StepAwaitingEmailConsent, sess.Step)
	s.Empty(sess.Email)
}

func (s *EngineSuite) TestLockedWorkHasDeadline() {
	engine, err := NewEngine(s.store, s.locker, s.repo, WithWorkTimeout(50*time.Millisecond))
	s.Require().NoError(err)

	s.start()
	s.send("ya")
	s.send("a@b.co")

	s.repo.EXPECT().Register(gomock.Any(), uid, "a@b.co", "").
		DoAndReturn(func(ctx context.Context, _ int64, _, _ string) (users.User, error) {
			deadline, ok := ctx.Deadline()
			s.True(ok)
			s.WithinDuration(time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
			return users.User{TelegramID: uid, Status: users.StatusRegistered}, nil
		})

	s.Require().NoError(engine.Handle(context.Background(), Input{UserID: uid, Text: "tidak"}, s.out))
	s.Equal(TextCompleted, s.out.last().Text)
}

func (s *EngineSuite) TestLockTimeout() {
	engine, err := NewEngine(s.store, s.locker, s.repo, WithLockWait(20*time.Millisecond))
	s.Require().NoError(err)

	unlock, err := s.locker.Lock(context.Background(), uid)
	s.Require().NoError(err)
	defer unlock()

	err = engine.Handle(context.Background(), Input{UserID: uid, Text: "ya"}, s.out)
	s.ErrorIs(err, ErrLockTimeout)
	s.Equal([]string{TextBusy}, s.out.texts())
	_, ok := s.session()
	s.False(ok)
}

// Cancellation racing a valid answer: exactly one wins and the loser sees the winner's state.
func (s *EngineSuite) TestConcurrentAdvanceAndCancel() {
	for i := 0; i < 50; i++ {
		s.SetupTest()
		s.start()

		var wg sync.WaitGroup
		for _, text := range []string{"ya", "tidak"} {
			wg.Add(1)
			go func(text string) {
				defer wg.Done()
				_ = s.engine.Handle(context.Background(), Input{UserID: uid, Text: text}, s.out)
			}(text)
		}
		wg.Wait()

		replies := s.out.texts()[1:]
		s.Require().Len(replies, 2)
		sess, ok := s.session()
		if ok {
			// "ya" won; "tidak" was then read as an email address.
			s.Equal(StepAwaitingEmail, sess.Step)
			s.Empty(sess.Email)
			s.ElementsMatch([]string{TextEmailPrompt, TextInvalidEmail}, replies)
		} else {
			s.ElementsMatch([]string{TextCancelled, TextNoSession}, replies)
		}
	}
}

// Two deliveries of the final answer must register exactly once.
func (s *EngineSuite) TestConcurrentCompletionRegistersOnce() {
	s.reachPhoneConsent()
	s.repo.EXPECT().Register(gomock.Any(), uid, "a@b.co", "").
		Return(users.User{TelegramID: uid, Status: users.StatusRegistered}, nil).
		Times(1)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.engine.Handle(context.Background(), Input{UserID: uid, Text: "tidak"}, s.out)
		}()
	}
	wg.Wait()

	replies := s.out.texts()
	s.ElementsMatch([]string{TextCompleted, TextNoSession}, replies[len(replies)-2:])
}

func (s *EngineSuite) TestUsersAreIndependent() {
	ctx := context.Background()
	other := uid + 1
	s.start()

	s.repo.EXPECT().GetUser(gomock.Any(), other).Return(users.User{TelegramID: other, Status: users.StatusNew}, nil)
	s.Require().NoError(s.engine.Start(ctx, other, s.out))

	s.send("tidak")
	s.True(s.engine.InProgress(ctx, other))
	s.False(s.engine.InProgress(ctx, uid))

	n, err := s.engine.ActiveSessions(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
}
