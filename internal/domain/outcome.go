package domain

import "fmt"

// ActionKind names one kind of remote action issued during a reset run.
type ActionKind string

const (
	ActionListConversations  ActionKind = "list_conversations"
	ActionCloseConversation  ActionKind = "close_conversation"
	ActionLeaveConversation  ActionKind = "leave_conversation"
	ActionDeleteConversation ActionKind = "delete_conversation"
	ActionListMessages       ActionKind = "list_messages"
	ActionDeleteMessage      ActionKind = "delete_message"
	ActionListUsers          ActionKind = "list_users"
	ActionAnonymizeUser      ActionKind = "anonymize_user"
)

// Outcome is the terminal result of one remote action: which entity it
// addressed, what was attempted, and the cause if it failed.
type Outcome struct {
	Entity string
	Action ActionKind
	Err    error
}

func (o Outcome) Succeeded() bool { return o.Err == nil }

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s %s failed: %v", o.Action, o.Entity, o.Err)
	}
	return fmt.Sprintf("%s %s ok", o.Action, o.Entity)
}

// Summary aggregates every outcome of one reset run. The run itself never
// fails; failed actions are carried here instead of aborting siblings.
type Summary struct {
	RunID       string
	Outcomes    []Outcome
	AnnounceErr error
}

// Dispatched is the number of actions that reached a terminal state.
func (s Summary) Dispatched() int { return len(s.Outcomes) }

func (s Summary) Failed() int {
	n := 0
	for _, o := range s.Outcomes {
		if !o.Succeeded() {
			n++
		}
	}
	return n
}

// Announced reports whether the completion webhook was delivered.
func (s Summary) Announced() bool { return s.AnnounceErr == nil }
