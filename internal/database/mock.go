package database

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockSarthiRepository struct {
	mock.Mock
}

func (m *MockSarthiRepository) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockSarthiRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSarthiRepository) GetUserById(ctx context.Context, userId int) (User, error) {
	args := m.Called(userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSarthiRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSarthiRepository) UpdateProfile(ctx context.Context, params UpdateProfileParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSarthiRepository) UpdateTraits(ctx context.Context, params UpdateTraitsParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSarthiRepository) ListUsersExcept(ctx context.Context, userId int) ([]User, error) {
	args := m.Called(userId)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockSarthiRepository) UpsertPreference(ctx context.Context, params UpsertPreferenceParams) (Preference, error) {
	args := m.Called(params)
	return args.Get(0).(Preference), args.Error(1)
}
func (m *MockSarthiRepository) GetPreference(ctx context.Context, userId int) (Preference, error) {
	args := m.Called(userId)
	return args.Get(0).(Preference), args.Error(1)
}
func (m *MockSarthiRepository) CreateFeedback(ctx context.Context, userId int, message string) (Feedback, error) {
	args := m.Called(userId, message)
	return args.Get(0).(Feedback), args.Error(1)
}
func (m *MockSarthiRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockSarthiRepository) GetMessagesBetween(ctx context.Context, userA, userB int) ([]Message, error) {
	args := m.Called(userA, userB)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockSarthiRepository) GetLastMessageTime(ctx context.Context, userA, userB int) (time.Time, error) {
	args := m.Called(userA, userB)
	return args.Get(0).(time.Time), args.Error(1)
}
