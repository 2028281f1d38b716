package services

import (
	"context"
	"time"

	"hisob/internal/amqp"
	"hisob/internal/currency"
)

// RateProvider serves the live rate table. *currency.Converter implements it.
type RateProvider interface {
	Rates(ctx context.Context) currency.RateTable
}

// Publisher emits domain events. *amqp.Client implements it. Services accept
// a nil Publisher and skip publishing.
type Publisher interface {
	PublishTransactionRecorded(ctx context.Context, msg *amqp.TransactionRecordedMessage) error
	PublishGoalStatusChanged(ctx context.Context, msg *amqp.GoalStatusChangedMessage) error
	PublishBudgetAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error
}

// StaticRates serves a fixed table.
type StaticRates struct {
	Table currency.RateTable
}

func (s StaticRates) Rates(context.Context) currency.RateTable {
	return s.Table
}

// Clock returns the current time. Tests replace it.
type Clock func() time.Time
