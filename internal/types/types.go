package types

import (
	"time"
)

type Traits struct {
	Diet           string `json:"diet"`
	Personality    string `json:"personality"`
	SleepHabit     string `json:"sleep_habit"`
	NoiseTolerance string `json:"noise_tolerance"`
	SmokeAlcohol   string `json:"smoke_alcohol"`
}

type User struct {
	Id           int       `json:"id"`
	Name         string    `json:"name"`
	EmailAddress string    `json:"email,omitempty"`
	Password     string    `json:"-"`
	Age          int       `json:"age,omitempty"`
	Gender       string    `json:"gender,omitempty"`
	City         string    `json:"city,omitempty"`
	Traits       *Traits   `json:"traits,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Preference struct {
	UserId          int       `json:"user_id"`
	PreferredGender string    `json:"preferred_gender"`
	MaxRent         int       `json:"max_rent"`
	Location        string    `json:"location"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

type Feedback struct {
	Id        int       `json:"id"`
	UserId    int       `json:"user_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type Message struct {
	Id         int       `json:"id"`
	SenderId   int       `json:"sender_id"`
	ReceiverId int       `json:"receiver_id"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// Candidate is one entry of a ranked match list.
type Candidate struct {
	Id                 int    `json:"id"`
	Name               string `json:"name"`
	City               string `json:"city"`
	CompatibilityScore int    `json:"compatibility_score"`
}
