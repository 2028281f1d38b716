package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"hisob/internal/amqp"
	"hisob/internal/core"
	"hisob/internal/currency"
	"hisob/internal/storage/memory"
)

// recordingPublisher captures every published event.
type recordingPublisher struct {
	mu           sync.Mutex
	transactions []*amqp.TransactionRecordedMessage
	goals        []*amqp.GoalStatusChangedMessage
	alerts       []*amqp.BudgetAlertMessage
	err          error
}

func (p *recordingPublisher) PublishTransactionRecorded(_ context.Context, msg *amqp.TransactionRecordedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transactions = append(p.transactions, msg)
	return p.err
}

func (p *recordingPublisher) PublishGoalStatusChanged(_ context.Context, msg *amqp.GoalStatusChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.goals = append(p.goals, msg)
	return p.err
}

func (p *recordingPublisher) PublishBudgetAlert(_ context.Context, msg *amqp.BudgetAlertMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, msg)
	return p.err
}

var errBroker = errors.New("broker down")

var staticRates = StaticRates{Table: currency.StaticTable()}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y, m, d int) time.Time { return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC) }

// seed stores transactions directly, bypassing the service.
func seed(store *memory.Store, txs ...core.Transaction) {
	for _, tx := range txs {
		if err := store.SaveTransaction(context.Background(), tx); err != nil {
			panic(err)
		}
	}
}

func tx(id string, kind core.Kind, amount string, cur core.Currency, date time.Time) core.Transaction {
	t := core.Transaction{
		ID:            id,
		UserID:        1,
		Kind:          kind,
		Amount:        dec(amount),
		Currency:      cur,
		Date:          core.DateOf(date),
		PaymentMethod: core.PaymentCash,
		Status:        core.StatusReceived,
		CategoryID:    1,
		CategoryName:  "Salary",
	}
	if kind == core.Expense {
		t.CategoryName = "Food"
		t.CategoryID = 2
	}
	return t
}
