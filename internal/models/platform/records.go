// Pledgeline - Donor Management Data Replication
// Copyright 2026 Pledgeline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pledgeline/pledgeline

package platform

import "github.com/shopspring/decimal"

// CampaignRecord is a campaign as the platform serializes it.
type CampaignRecord struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Status       string          `json:"status"`
	GoalAmount   decimal.Decimal `json:"goal"`
	CurrencyCode string          `json:"currency_code"`
	StartedAt    Time            `json:"started_at"`
	EndedAt      Time            `json:"ended_at"`
	UpdatedAt    Time            `json:"updated_at"`
}

// SupporterRecord is a supporter (donor contact) as the platform serializes
// it. email_address was plain "email" before the 2023-07 API version; the
// repository mapping prefers the new name and falls back to the old one.
type SupporterRecord struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	EmailAddress string `json:"email_address"`
	LegacyEmail  string `json:"email"`
	Phone        string `json:"phone"`
	City         string `json:"city"`
	Country      string `json:"country"`
	UpdatedAt    Time   `json:"updated_at"`
}

// TransactionRecord is a donation payment as the platform serializes it.
// purchased_at is the canonical timestamp for transaction filtering.
type TransactionRecord struct {
	ID              int64           `json:"id"`
	SupporterID     *int64          `json:"supporter_id"`
	CampaignID      *int64          `json:"campaign_id"`
	RecurringPlanID *int64          `json:"recurring_donation_plan_id"`
	Status          string          `json:"status"`
	PaymentMethod   string          `json:"payment_method"`
	GrossAmount     decimal.Decimal `json:"gross_amount"`
	FeeAmount       decimal.Decimal `json:"fees_amount"`
	NetAmount       decimal.Decimal `json:"net_amount"`
	CurrencyCode    string          `json:"currency_code"`
	PurchasedAt     Time            `json:"purchased_at"`
	UpdatedAt       Time            `json:"updated_at"`
}

// RecurringPlanRecord is a recurring-donation schedule as the platform
// serializes it.
type RecurringPlanRecord struct {
	ID           int64           `json:"id"`
	SupporterID  *int64          `json:"supporter_id"`
	CampaignID   *int64          `json:"campaign_id"`
	Status       string          `json:"status"`
	Frequency    string          `json:"frequency"`
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currency_code"`
	StartedAt    Time            `json:"started_at"`
	CanceledAt   Time            `json:"canceled_at"`
	UpdatedAt    Time            `json:"updated_at"`
}

// TimestampField returns the platform field an incremental filter applies to
// for the given collection path. Transactions filter on purchase time; all
// other entities filter on updated_at.
func TimestampField(collection string) string {
	if collection == "transactions" {
		return "purchased_at"
	}
	return "updated_at"
}
