package database

import "time"

type User struct {
	Id             int
	Name           string
	EmailAddress   string
	PasswordHash   string
	Age            int
	Gender         string
	City           string
	Diet           string
	Personality    string
	SleepHabit     string
	NoiseTolerance string
	SmokeAlcohol   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Preference struct {
	Id              int
	UserId          int
	PreferredGender string
	MaxRent         int
	Location        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Feedback struct {
	Id        int
	UserId    int
	Message   string
	CreatedAt time.Time
}

type Message struct {
	Id         int
	SenderId   int
	ReceiverId int
	Content    string
	CreatedAt  time.Time
}

type CreateUserParams struct {
	Name         string
	EmailAddress string
	PasswordHash string
}

// UpdateProfileParams holds a partial profile update. Nil fields keep
// their stored value.
type UpdateProfileParams struct {
	UserId int
	Name   *string
	Age    *int
	Gender *string
	City   *string
}

type UpdateTraitsParams struct {
	UserId         int
	Diet           *string
	Personality    *string
	SleepHabit     *string
	NoiseTolerance *string
	SmokeAlcohol   *string
}

type UpsertPreferenceParams struct {
	UserId          int
	PreferredGender string
	MaxRent         int
	Location        string
}

type CreateMessageParams struct {
	SenderId   int
	ReceiverId int
	Content    string
	CreatedAt  time.Time
}
