package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/sarthi/internal/database"
	"github.com/npezzotti/sarthi/internal/match"
	"github.com/npezzotti/sarthi/internal/server"
	"github.com/npezzotti/sarthi/internal/types"
)

const maxFeedbackLength = 300

type UpdateProfileRequest struct {
	Name   *string `json:"name"`
	Age    *int    `json:"age"`
	Gender *string `json:"gender"`
	City   *string `json:"city"`
}

type UpdateTraitsRequest struct {
	Diet           *string `json:"diet"`
	Personality    *string `json:"personality"`
	SleepHabit     *string `json:"sleep_habit"`
	NoiseTolerance *string `json:"noise_tolerance"`
	SmokeAlcohol   *string `json:"smoke_alcohol"`
}

type PreferenceRequest struct {
	PreferredGender string `json:"preferred_gender"`
	MaxRent         *int   `json:"max_rent"`
	Location        string `json:"location"`
}

type FeedbackRequest struct {
	Message string `json:"message"`
}

func (s *SarthiApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *SarthiApp) storeContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.storeTimeout)
}

// lookupError maps a failed single-record lookup onto a response.
func lookupError(err error) *ApiError {
	if errors.Is(err, database.ErrNotFound) {
		return NewNotFoundError()
	}
	return NewInternalServerError(err)
}

func toTraits(u database.User) types.Traits {
	return types.Traits{
		Diet:           u.Diet,
		Personality:    u.Personality,
		SleepHabit:     u.SleepHabit,
		NoiseTolerance: u.NoiseTolerance,
		SmokeAlcohol:   u.SmokeAlcohol,
	}
}

func toUser(u database.User) types.User {
	traits := toTraits(u)
	return types.User{
		Id:           u.Id,
		Name:         u.Name,
		EmailAddress: u.EmailAddress,
		Age:          u.Age,
		Gender:       u.Gender,
		City:         u.City,
		Traits:       &traits,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func toPreference(p database.Preference) types.Preference {
	return types.Preference{
		UserId:          p.UserId,
		PreferredGender: p.PreferredGender,
		MaxRent:         p.MaxRent,
		Location:        p.Location,
		UpdatedAt:       p.UpdatedAt,
	}
}

func (s *SarthiApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		s.log.Println("health check:", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *SarthiApp) profile(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		user, err := s.db.GetUserById(ctx, userId)
		if err != nil {
			errResp := lookupError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		s.writeJson(w, http.StatusOK, toUser(user))
	case http.MethodPut:
		var req UpdateProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
			errResp := NewBadRequestMessage("name cannot be empty")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		if req.Age != nil && *req.Age < 0 {
			errResp := NewBadRequestMessage("age cannot be negative")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		user, err := s.db.UpdateProfile(ctx, database.UpdateProfileParams{
			UserId: userId,
			Name:   req.Name,
			Age:    req.Age,
			Gender: req.Gender,
			City:   req.City,
		})
		if err != nil {
			errResp := lookupError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		s.writeJson(w, http.StatusOK, toUser(user))
	default:
		errResp := NewMethodNotAllowedError()
		s.writeJson(w, errResp.StatusCode, errResp)
	}
}

func (s *SarthiApp) traits(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		user, err := s.db.GetUserById(ctx, userId)
		if err != nil {
			errResp := lookupError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		s.writeJson(w, http.StatusOK, toTraits(user))
	case http.MethodPost:
		var req UpdateTraitsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		user, err := s.db.UpdateTraits(ctx, database.UpdateTraitsParams{
			UserId:         userId,
			Diet:           req.Diet,
			Personality:    req.Personality,
			SleepHabit:     req.SleepHabit,
			NoiseTolerance: req.NoiseTolerance,
			SmokeAlcohol:   req.SmokeAlcohol,
		})
		if err != nil {
			errResp := lookupError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		s.writeJson(w, http.StatusOK, toTraits(user))
	default:
		errResp := NewMethodNotAllowedError()
		s.writeJson(w, errResp.StatusCode, errResp)
	}
}

func (s *SarthiApp) preferences(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		pref, err := s.db.GetPreference(ctx, userId)
		if err != nil {
			errResp := lookupError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		s.writeJson(w, http.StatusOK, toPreference(pref))
	case http.MethodPost:
		var req PreferenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		if req.PreferredGender == "" || req.Location == "" || req.MaxRent == nil || *req.MaxRent < 0 {
			errResp := NewBadRequestMessage("preferred_gender, max_rent and location are required")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		pref, err := s.db.UpsertPreference(ctx, database.UpsertPreferenceParams{
			UserId:          userId,
			PreferredGender: req.PreferredGender,
			MaxRent:         *req.MaxRent,
			Location:        req.Location,
		})
		if err != nil {
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		s.writeJson(w, http.StatusOK, toPreference(pref))
	default:
		errResp := NewMethodNotAllowedError()
		s.writeJson(w, errResp.StatusCode, errResp)
	}
}

// match ranks every other user by trait compatibility with the caller.
func (s *SarthiApp) match(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	me, err := s.db.GetUserById(ctx, userId)
	if err == nil {
		_, err = s.db.GetPreference(ctx, userId)
	}
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewBadRequestMessage("set your profile/preferences first")
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	others, err := s.db.ListUsersExcept(ctx, userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	candidates := make([]types.User, 0, len(others))
	for _, o := range others {
		candidates = append(candidates, toUser(o))
	}

	s.writeJson(w, http.StatusOK, match.Rank(toUser(me), candidates))
}

func (s *SarthiApp) feedback(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		errResp := NewBadRequestMessage("message cannot be empty")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if utf8.RuneCountInString(req.Message) > maxFeedbackLength {
		errResp := NewBadRequestMessage("message exceeds 300 characters")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	fb, err := s.db.CreateFeedback(ctx, userId, req.Message)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, types.Feedback{
		Id:        fb.Id,
		UserId:    fb.UserId,
		Message:   fb.Message,
		CreatedAt: fb.CreatedAt,
	})
}

// getMessages returns the conversation between the caller and receiverId,
// oldest first.
func (s *SarthiApp) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	receiverId, err := strconv.Atoi(r.PathValue("receiverId"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msgs, err := s.cs.History(r.Context(), userId, receiverId)
	if err != nil {
		var errResp *ApiError
		switch {
		case errors.Is(err, server.ErrUnknownUser):
			errResp = NewNotFoundError()
		case server.IsValidationError(err):
			errResp = NewBadRequestError()
		case server.IsStorageError(err):
			errResp = NewServiceUnavailableError(err)
		default:
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, msgs)
}

func (s *SarthiApp) serveWs(w http.ResponseWriter, r *http.Request) {
	id, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	ctx, cancel := s.storeContext(r)
	user, err := s.db.GetUserById(ctx, id)
	cancel()
	if err != nil {
		errResp := lookupError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("request %s: error upgrading connection: %v", RequestId(r.Context()), err)
		return
	}

	client := server.NewClient(toUser(user), conn, s.cs, s.log)

	if err := s.cs.RegisterClient(client); err != nil {
		s.log.Printf("request %s: rejecting connection for user %d: %v", RequestId(r.Context()), user.Id, err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}
	go client.Write()
	go client.Read()
}
