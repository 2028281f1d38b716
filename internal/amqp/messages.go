package amqp

import (
	"encoding/json"
	"time"
)

// Routing keys on the topic exchange.
const (
	KeyTransactionRecorded = "transaction.recorded"
	KeyGoalStatusChanged   = "goal.status_changed"
	KeyBudgetAlert         = "budget.alert"
)

// TransactionRecordedMessage announces a stored transaction. Consumers fetch
// the full record by ID.
type TransactionRecordedMessage struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionRecordedMessage(id string, userID int64, kind string) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		ID:        id,
		UserID:    userID,
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GoalStatusChangedMessage is published when a goal leaves the active state.
type GoalStatusChangedMessage struct {
	GoalID    int64     `json:"goal_id"`
	UserID    int64     `json:"user_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Progress  string    `json:"progress_percentage"`
	Timestamp time.Time `json:"timestamp"`
}

func (m *GoalStatusChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func GoalStatusChangedMessageFromJSON(data []byte) (*GoalStatusChangedMessage, error) {
	var msg GoalStatusChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// BudgetAlertMessage is published when spending crosses a budget threshold.
type BudgetAlertMessage struct {
	BudgetID  int64     `json:"budget_id"`
	UserID    int64     `json:"user_id"`
	State     string    `json:"state"`
	UsagePct  string    `json:"usage_percentage"`
	Spent     string    `json:"spent"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}

func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
