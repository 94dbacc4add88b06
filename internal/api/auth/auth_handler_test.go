package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/greenbasket/garden-backend/internal/types"
)

// MockAuthService is a mock implementation of the AuthService interface
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, req types.RegisterRequest) (*types.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*types.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockAuthService) ValidateRefresh(ctx context.Context, refreshToken string) (*types.User, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	args := m.Called(ctx, userID, currentPassword, newPassword)
	return args.Error(0)
}

func newTestHandler(t *testing.T, mockService *MockAuthService, mockRepo *MockAuthRepo) *AuthHandler {
	t.Helper()
	logger := slog.Default()
	sessions := NewSessionManager(testIssuer(t), mockRepo, false, logger)
	return NewAuthHandler(mockService, sessions, logger)
}

func TestLoginHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockRepo := new(MockAuthRepo)
		handler := newTestHandler(t, mockService, mockRepo)

		user := &types.User{ID: uuid.New(), Email: "test@example.com", Role: types.RoleUser, IsActive: true}

		body, _ := json.Marshal(map[string]string{
			"email":    "test@example.com",
			"password": "password123",
		})
		req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		mockService.On("Login", mock.Anything, "test@example.com", "password123").Return(user, nil).Once()
		mockRepo.On("SetRefreshToken", mock.Anything, user.ID, mock.AnythingOfType("string")).Return(nil).Once()

		handler.Login(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response types.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.True(t, response.Success)
		assert.Equal(t, "Login successful", response.Message)

		cookies := w.Result().Cookies()
		assert.NotNil(t, cookieByName(cookies, AccessTokenCookie))
		assert.NotNil(t, cookieByName(cookies, RefreshTokenCookie))

		mockService.AssertExpectations(t)
		mockRepo.AssertExpectations(t)
	})

	t.Run("MissingFields", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(t, mockService, new(MockAuthRepo))

		body, _ := json.Marshal(map[string]string{"email": "test@example.com"})
		req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		handler.Login(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "password")
		mockService.AssertNotCalled(t, "Login")
	})

	t.Run("InvalidCredentials", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(t, mockService, new(MockAuthRepo))

		body, _ := json.Marshal(map[string]string{
			"email":    "test@example.com",
			"password": "wrongpassword",
		})
		req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		mockService.On("Login", mock.Anything, "test@example.com", "wrongpassword").
			Return(nil, types.ErrUnauthenticated).Once()

		handler.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid email or password")
		mockService.AssertExpectations(t)
	})
}

func TestRegisterHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockRepo := new(MockAuthRepo)
		handler := newTestHandler(t, mockService, mockRepo)

		user := &types.User{ID: uuid.New(), Username: "newuser", Email: "new@example.com", Role: types.RoleUser, IsActive: true}

		body, _ := json.Marshal(map[string]string{
			"username": "newuser",
			"email":    "new@example.com",
			"password": "password123",
		})
		req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		mockService.On("Register", mock.Anything, mock.MatchedBy(func(r types.RegisterRequest) bool {
			return r.Username == "newuser" && r.Email == "new@example.com"
		})).Return(user, nil).Once()
		mockRepo.On("SetRefreshToken", mock.Anything, user.ID, mock.AnythingOfType("string")).Return(nil).Once()

		handler.Register(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NotNil(t, cookieByName(w.Result().Cookies(), RefreshTokenCookie))
		mockService.AssertExpectations(t)
		mockRepo.AssertExpectations(t)
	})

	t.Run("MissingFields", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(t, mockService, new(MockAuthRepo))

		body, _ := json.Marshal(map[string]string{"username": "newuser"})
		req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		handler.Register(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Missing required fields")
		assert.Contains(t, w.Body.String(), "email")
		assert.Contains(t, w.Body.String(), "password")
		mockService.AssertNotCalled(t, "Register")
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(t, mockService, new(MockAuthRepo))

		body, _ := json.Marshal(map[string]string{
			"username": "newuser",
			"email":    "taken@example.com",
			"password": "password123",
		})
		req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		mockService.On("Register", mock.Anything, mock.Anything).
			Return(nil, types.ErrConflict).Once()

		handler.Register(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		mockService.AssertExpectations(t)
	})
}

func TestLogoutHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockRepo := new(MockAuthRepo)
		handler := newTestHandler(t, mockService, mockRepo)
		userID := uuid.New()

		mockRepo.On("ClearRefreshToken", mock.Anything, userID).Return(nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/logout", nil)
		ctx := context.WithValue(req.Context(), UserIDKey, userID.String())
		req = req.WithContext(ctx)
		w := httptest.NewRecorder()

		handler.Logout(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		refresh := cookieByName(w.Result().Cookies(), RefreshTokenCookie)
		require.NotNil(t, refresh)
		assert.Less(t, refresh.MaxAge, 0)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		handler := newTestHandler(t, new(MockAuthService), new(MockAuthRepo))

		req := httptest.NewRequest(http.MethodGet, "/logout", nil)
		w := httptest.NewRecorder()

		handler.Logout(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRefreshHandler(t *testing.T) {
	t.Run("RotatesFromCookie", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockRepo := new(MockAuthRepo)
		handler := newTestHandler(t, mockService, mockRepo)

		user := &types.User{ID: uuid.New(), Email: "test@example.com", IsActive: true}

		mockService.On("ValidateRefresh", mock.Anything, "current-refresh-token").Return(user, nil).Once()
		mockRepo.On("SetRefreshToken", mock.Anything, user.ID, mock.AnythingOfType("string")).Return(nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
		req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: "current-refresh-token"})
		w := httptest.NewRecorder()

		handler.Refresh(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response types.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.True(t, response.Success)
		mockService.AssertExpectations(t)
		mockRepo.AssertExpectations(t)
	})

	t.Run("MissingToken", func(t *testing.T) {
		handler := newTestHandler(t, new(MockAuthService), new(MockAuthRepo))

		req := httptest.NewRequest(http.MethodPost, "/refresh", bytes.NewBufferString(`{}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		handler.Refresh(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("RevokedToken", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(t, mockService, new(MockAuthRepo))

		mockService.On("ValidateRefresh", mock.Anything, "stale-token").
			Return(nil, types.ErrUnauthenticated).Once()

		req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
		req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: "stale-token"})
		w := httptest.NewRecorder()

		handler.Refresh(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockService.AssertExpectations(t)
	})
}

func TestChangePasswordHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(t, mockService, new(MockAuthRepo))
		userID := uuid.New()

		mockService.On("ChangePassword", mock.Anything, userID, "oldpassword", "newpassword1").Return(nil).Once()

		body, _ := json.Marshal(map[string]string{
			"currentPassword": "oldpassword",
			"newPassword":     "newpassword1",
		})
		req := httptest.NewRequest(http.MethodPatch, "/change-password", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req = req.WithContext(context.WithValue(req.Context(), UserIDKey, userID.String()))
		w := httptest.NewRecorder()

		handler.ChangePassword(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("MissingFields", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(t, mockService, new(MockAuthRepo))

		body, _ := json.Marshal(map[string]string{"currentPassword": "oldpassword"})
		req := httptest.NewRequest(http.MethodPatch, "/change-password", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req = req.WithContext(context.WithValue(req.Context(), UserIDKey, uuid.NewString()))
		w := httptest.NewRecorder()

		handler.ChangePassword(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "newPassword")
		mockService.AssertNotCalled(t, "ChangePassword")
	})
}
