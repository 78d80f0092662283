package models

import "time"

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	QueryCount   int64     `json:"query_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Query is one chat turn sent by an authenticated user.
type Query struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Analysis is one image classification requested by an authenticated user.
type Analysis struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Type       string    `json:"type"`
	Result     bool      `json:"result"`
	Confidence float64   `json:"confidence"`
	RiskLevel  string    `json:"risk_level"`
	Timestamp  time.Time `json:"timestamp"`
}

type UsageSummary struct {
	UserID     int64 `json:"user_id"`
	QueryCount int64 `json:"query_count"`
	ChatTurns  int64 `json:"chat_turns"`
	Analyses   int64 `json:"analyses"`
}
