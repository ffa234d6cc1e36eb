package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"diplomacy-reset/internal/domain"
)

// fakeSlack is an in-memory workspace implementing SlackAPI. Counters are
// guarded because the orchestrator hits them from many goroutines.
type fakeSlack struct {
	mu sync.Mutex

	conversations []domain.Conversation
	history       map[string][]domain.MessageRef
	users         []domain.User

	listConversationsErr error
	listUsersErr         error
	closeErr             error

	closed          []string
	left            []string
	deleted         []string
	deletedMessages []domain.MessageRef
	anonymized      []string
	userListCalls   int
}

func (f *fakeSlack) ListConversations(context.Context) ([]domain.Conversation, error) {
	if f.listConversationsErr != nil {
		return nil, f.listConversationsErr
	}
	return f.conversations, nil
}

func (f *fakeSlack) ListHistory(_ context.Context, channelID string) ([]domain.MessageRef, error) {
	return f.history[channelID], nil
}

func (f *fakeSlack) ListUsers(context.Context) ([]domain.User, error) {
	f.mu.Lock()
	f.userListCalls++
	f.mu.Unlock()
	if f.listUsersErr != nil {
		return nil, f.listUsersErr
	}
	return f.users, nil
}

func (f *fakeSlack) CloseConversation(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, id)
	return f.closeErr
}

func (f *fakeSlack) LeaveConversation(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left = append(f.left, id)
	return nil
}

func (f *fakeSlack) DeleteConversation(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeSlack) DeleteMessage(_ context.Context, channelID, ts string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedMessages = append(f.deletedMessages, domain.MessageRef{Channel: channelID, Timestamp: ts})
	return nil
}

func (f *fakeSlack) SetUserProfile(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.anonymized = append(f.anonymized, userID)
	return nil
}

type actionCounts struct {
	closed, left, deleted, deletedMessages, anonymized int
}

func (f *fakeSlack) counts() actionCounts {
	f.mu.Lock()
	defer f.mu.Unlock()
	return actionCounts{
		closed:          len(f.closed),
		left:            len(f.left),
		deleted:         len(f.deleted),
		deletedMessages: len(f.deletedMessages),
		anonymized:      len(f.anonymized),
	}
}

// fakeHook records every announcement and, via onSend, lets a test observe
// what had resolved by the time the webhook fired.
type fakeHook struct {
	mu     sync.Mutex
	texts  []string
	err    error
	onSend func()
}

func (f *fakeHook) Send(_ context.Context, text string) error {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.onSend != nil {
		f.onSend()
	}
	return f.err
}

func newTestService(t *testing.T, api SlackAPI, hook Announcer) *ResetService {
	t.Helper()
	s, err := NewResetService(api, hook, nil, 8)
	require.NoError(t, err)
	return s
}

// ---------------------------------------------------------------------------
// Constructor
// ---------------------------------------------------------------------------

func TestNewResetService_ValidatesDependencies(t *testing.T) {
	_, err := NewResetService(nil, &fakeHook{}, nil, 0)
	require.Error(t, err)
	_, err = NewResetService(&fakeSlack{}, nil, nil, 0)
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// Full run
// ---------------------------------------------------------------------------

func TestRun_EndToEnd(t *testing.T) {
	api := &fakeSlack{
		conversations: []domain.Conversation{{ID: "C1"}, {ID: "C2"}},
		history: map[string][]domain.MessageRef{
			"C1": {{Channel: "C1", Timestamp: "100.1"}},
			"C2": {{Channel: "C2", Timestamp: "200.1"}},
		},
		users: []domain.User{{ID: "U1"}},
	}
	var atAnnounce actionCounts
	hook := &fakeHook{}
	hook.onSend = func() { atAnnounce = api.counts() }

	summary := newTestService(t, api, hook).Run(context.Background())

	require.ElementsMatch(t, []string{"C1", "C2"}, api.closed)
	require.ElementsMatch(t, []string{"C1", "C2"}, api.left)
	require.ElementsMatch(t, []string{"C1", "C2"}, api.deleted)
	require.ElementsMatch(t, []domain.MessageRef{
		{Channel: "C1", Timestamp: "100.1"},
		{Channel: "C2", Timestamp: "200.1"},
	}, api.deletedMessages)
	require.Equal(t, []string{"U1"}, api.anonymized)

	// exactly one announcement, sent only after every action resolved
	require.Equal(t, []string{"Slack reset for new diplomacy game!"}, hook.texts)
	require.Equal(t, actionCounts{closed: 2, left: 2, deleted: 2, deletedMessages: 2, anonymized: 1}, atAnnounce)

	// 2 close + 2 leave + 2 delete + 2 delete-message + 1 anonymize
	require.Equal(t, 9, summary.Dispatched())
	require.Zero(t, summary.Failed())
	require.True(t, summary.Announced())
	require.NotEmpty(t, summary.RunID)
}

func TestRun_EmptyWorkspace(t *testing.T) {
	api := &fakeSlack{}
	hook := &fakeHook{}

	summary := newTestService(t, api, hook).Run(context.Background())

	require.Zero(t, summary.Dispatched())
	require.Zero(t, summary.Failed())
	require.True(t, summary.Announced())
	require.Len(t, hook.texts, 1, "an already-empty workspace still announces")
}

func TestRun_UserFanOutOncePerRun(t *testing.T) {
	api := &fakeSlack{
		conversations: []domain.Conversation{{ID: "C1"}, {ID: "C2"}, {ID: "C3"}},
		users:         []domain.User{{ID: "U1"}, {ID: "U2"}},
	}
	hook := &fakeHook{}

	newTestService(t, api, hook).Run(context.Background())

	require.Equal(t, 1, api.userListCalls, "users are listed once per run, not once per conversation")
	require.ElementsMatch(t, []string{"U1", "U2"}, api.anonymized)
}

func TestRun_ActionFailuresAreAbsorbed(t *testing.T) {
	api := &fakeSlack{
		conversations: []domain.Conversation{{ID: "C1"}, {ID: "C2"}},
		closeErr:      errors.New("channel_not_found"),
	}
	hook := &fakeHook{}

	summary := newTestService(t, api, hook).Run(context.Background())

	require.Equal(t, 6, summary.Dispatched(), "failures never reduce the joined cardinality")
	require.Equal(t, 2, summary.Failed())
	require.True(t, summary.Announced())
	require.ElementsMatch(t, []string{"C1", "C2"}, api.deleted, "sibling actions are unaffected")
}

func TestRun_ListConversationsFailure(t *testing.T) {
	api := &fakeSlack{
		listConversationsErr: errors.New("invalid_auth"),
		users:                []domain.User{{ID: "U1"}},
	}
	hook := &fakeHook{}

	summary := newTestService(t, api, hook).Run(context.Background())

	var listOutcome *domain.Outcome
	for i := range summary.Outcomes {
		if summary.Outcomes[i].Action == domain.ActionListConversations {
			listOutcome = &summary.Outcomes[i]
		}
	}
	require.NotNil(t, listOutcome)
	require.False(t, listOutcome.Succeeded())

	require.Equal(t, []string{"U1"}, api.anonymized, "the user stage is independent of the conversation stage")
	require.Len(t, hook.texts, 1, "the announcement is unconditional")
}

func TestRun_ListUsersFailure(t *testing.T) {
	api := &fakeSlack{
		conversations: []domain.Conversation{{ID: "C1"}},
		listUsersErr:  errors.New("invalid_auth"),
	}
	hook := &fakeHook{}

	summary := newTestService(t, api, hook).Run(context.Background())

	failed := 0
	for _, o := range summary.Outcomes {
		if o.Action == domain.ActionListUsers && !o.Succeeded() {
			failed++
		}
	}
	require.Equal(t, 1, failed)
	require.ElementsMatch(t, []string{"C1"}, api.closed, "conversation stages proceed despite the user stage failing")
	require.True(t, summary.Announced())
}

func TestRun_AnnouncementFailureIsRecorded(t *testing.T) {
	api := &fakeSlack{}
	hook := &fakeHook{err: errors.New("no_service")}

	summary := newTestService(t, api, hook).Run(context.Background())

	require.False(t, summary.Announced())
	require.ErrorContains(t, summary.AnnounceErr, "no_service")
}
