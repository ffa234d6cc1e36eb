package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"diplomacy-reset/internal/domain"
)

// resetAnnouncement is posted to the webhook after every run, successful or
// not, so players know the board is clear.
const resetAnnouncement = "Slack reset for new diplomacy game!"

// SlackAPI is the slice of the workspace API a reset run consumes.
// *slack.Client satisfies this interface.
type SlackAPI interface {
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	ListHistory(ctx context.Context, channelID string) ([]domain.MessageRef, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	CloseConversation(ctx context.Context, id string) error
	LeaveConversation(ctx context.Context, id string) error
	DeleteConversation(ctx context.Context, id string) error
	DeleteMessage(ctx context.Context, channelID, ts string) error
	SetUserProfile(ctx context.Context, userID string) error
}

// Announcer posts the completion message. *slack.Webhook satisfies this
// interface.
type Announcer interface {
	Send(ctx context.Context, text string) error
}

// ResetService wipes a workspace: it closes, leaves and deletes every
// conversation, deletes every message, anonymizes every user profile and then
// announces completion. A run never fails as a whole; individual action
// failures are absorbed into the returned summary.
type ResetService struct {
	api         SlackAPI
	hook        Announcer
	log         *slog.Logger
	maxInFlight int64
}

func NewResetService(api SlackAPI, hook Announcer, log *slog.Logger, maxInFlight int64) (*ResetService, error) {
	if api == nil {
		return nil, errors.New("usecase: slack api must not be nil")
	}
	if hook == nil {
		return nil, errors.New("usecase: announcer must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	return &ResetService{
		api:         api,
		hook:        hook,
		log:         log,
		maxInFlight: maxInFlight,
	}, nil
}

// Run performs one full reset and blocks until every dispatched action has
// resolved and the announcement was attempted. Dispatched actions run to
// completion; ctx is forwarded to remote calls but the run itself carries no
// deadline.
func (s *ResetService) Run(ctx context.Context) domain.Summary {
	runID := newUUID()
	log := s.log.With("run_id", runID)
	log.Info("reset run started")

	var (
		mu       sync.Mutex
		outcomes []domain.Outcome
	)
	collect := func(outs ...domain.Outcome) {
		mu.Lock()
		outcomes = append(outcomes, outs...)
		mu.Unlock()
	}
	// One log line per resolved action is the run's audit trail.
	report := func(o domain.Outcome) {
		if o.Err != nil {
			log.Warn("action failed", "action", string(o.Action), "entity", o.Entity, "cause", o.Err)
			return
		}
		log.Info("action completed", "action", string(o.Action), "entity", o.Entity)
	}
	coord := NewCoordinator(s.maxInFlight, report)

	log.Info("listing conversations")
	conversations, err := s.api.ListConversations(ctx)
	if err != nil {
		// Nothing can be fanned out without the list; record the stage
		// failure and fall through to the announcement.
		out := domain.Outcome{Entity: "workspace", Action: domain.ActionListConversations, Err: err}
		report(out)
		collect(out)
	}

	log.Info("fanning out", "conversations", len(conversations))
	var wg sync.WaitGroup
	group := func(fn func() []domain.Outcome) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collect(fn()...)
		}()
	}

	if len(conversations) > 0 {
		group(func() []domain.Outcome {
			return Dispatch(ctx, coord, domain.ActionCloseConversation, conversations, func(ctx context.Context, c domain.Conversation) error {
				return s.api.CloseConversation(ctx, c.ID)
			})
		})
		group(func() []domain.Outcome {
			return Dispatch(ctx, coord, domain.ActionLeaveConversation, conversations, func(ctx context.Context, c domain.Conversation) error {
				return s.api.LeaveConversation(ctx, c.ID)
			})
		})
		group(func() []domain.Outcome {
			return Dispatch(ctx, coord, domain.ActionDeleteConversation, conversations, func(ctx context.Context, c domain.Conversation) error {
				return s.api.DeleteConversation(ctx, c.ID)
			})
		})
		group(func() []domain.Outcome {
			return s.purgeMessages(ctx, coord, report, conversations)
		})
	}
	// The profile fan-out runs once per run, not once per conversation.
	group(func() []domain.Outcome {
		return s.anonymizeUsers(ctx, coord, report)
	})
	wg.Wait()

	log.Info("announcing reset")
	announceErr := s.hook.Send(ctx, resetAnnouncement)
	if announceErr != nil {
		log.Warn("announcement failed", "cause", announceErr)
	}

	summary := domain.Summary{RunID: runID, Outcomes: outcomes, AnnounceErr: announceErr}
	log.Info("reset run finished", "dispatched", summary.Dispatched(), "failed", summary.Failed())
	return summary
}

// purgeMessages lists each conversation's history and fans out one delete per
// message. Histories of different conversations are crawled concurrently;
// within one conversation the crawl is a strict cursor chain.
func (s *ResetService) purgeMessages(ctx context.Context, coord *Coordinator, report func(domain.Outcome), conversations []domain.Conversation) []domain.Outcome {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		outcomes []domain.Outcome
	)
	for _, conv := range conversations {
		wg.Add(1)
		go func(conv domain.Conversation) {
			defer wg.Done()
			refs, err := s.api.ListHistory(ctx, conv.ID)
			if err != nil {
				out := domain.Outcome{Entity: conv.ID, Action: domain.ActionListMessages, Err: err}
				report(out)
				mu.Lock()
				outcomes = append(outcomes, out)
				mu.Unlock()
				return
			}
			outs := Dispatch(ctx, coord, domain.ActionDeleteMessage, refs, func(ctx context.Context, m domain.MessageRef) error {
				return s.api.DeleteMessage(ctx, m.Channel, m.Timestamp)
			})
			mu.Lock()
			outcomes = append(outcomes, outs...)
			mu.Unlock()
		}(conv)
	}
	wg.Wait()
	return outcomes
}

func (s *ResetService) anonymizeUsers(ctx context.Context, coord *Coordinator, report func(domain.Outcome)) []domain.Outcome {
	users, err := s.api.ListUsers(ctx)
	if err != nil {
		out := domain.Outcome{Entity: "workspace", Action: domain.ActionListUsers, Err: err}
		report(out)
		return []domain.Outcome{out}
	}
	return Dispatch(ctx, coord, domain.ActionAnonymizeUser, users, func(ctx context.Context, u domain.User) error {
		return s.api.SetUserProfile(ctx, u.ID)
	})
}

var newUUID = func() string {
	return uuid.NewString()
}
