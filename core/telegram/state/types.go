package state

import (
	"time"

	tele "gopkg.in/telebot.v4"
)

// State identifies a conversation step.
type State string

// StateIdle means the user is not in any step.
const StateIdle State = "idle"

// Session is the conversation state of one user.
type Session struct {
	State     State
	TempData  map[string]interface{}
	UpdatedAt time.Time
}

// Manager tracks conversation steps per user.
type Manager interface {
	SetState(userID int64, st State)
	GetState(userID int64) State
	ClearState(userID int64)
	InProgress(userID int64) bool

	SetTemp(userID int64, key string, value interface{})
	GetTemp(userID int64, key string) (interface{}, bool)
	Clear(userID int64)

	// Handle registers the handler run for messages of users in st.
	Handle(st State, h tele.HandlerFunc)
	// ManagerHandler runs the handler of the sender's current step.
	ManagerHandler(c tele.Context) error
}
