package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-curriculum/internal/api/shared"
	"github.com/phrazzld/scry-curriculum/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeJWTService returns a fixed validation result.
type fakeJWTService struct {
	claims *auth.Claims
	err    error
}

func (f *fakeJWTService) GenerateToken(context.Context, uuid.UUID) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeJWTService) ValidateToken(context.Context, string) (*auth.Claims, error) {
	return f.claims, f.err
}

// echoUserID writes the authenticated user ID to the response body.
var echoUserID = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r)
	if !ok {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	_, _ = w.Write([]byte(userID.String()))
})

func TestAuthMiddleware_Authenticate(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	jwtService := auth.RequireTestJWTService(t)
	validToken, err := jwtService.GenerateToken(context.Background(), userID)
	require.NoError(t, err)

	expired, err := auth.NewJWTServiceWithClock(auth.DefaultJWTConfig(), func() time.Time {
		return time.Now().Add(-24 * time.Hour)
	})
	require.NoError(t, err)
	expiredToken, err := expired.GenerateToken(context.Background(), userID)
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedError  string
	}{
		{name: "valid token", authHeader: "Bearer " + validToken, expectedStatus: http.StatusOK},
		{name: "lowercase scheme", authHeader: "bearer " + validToken, expectedStatus: http.StatusOK},
		{
			name:           "missing auth header",
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Authorization header required",
		},
		{
			name:           "invalid auth format",
			authHeader:     "Token " + validToken,
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Authorization header required",
		},
		{
			name:           "empty bearer",
			authHeader:     "Bearer ",
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Authorization header required",
		},
		{
			name:           "malformed token",
			authHeader:     "Bearer not-a-jwt",
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Invalid token",
		},
		{
			name:           "expired token",
			authHeader:     "Bearer " + expiredToken,
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Token expired",
		},
	}

	mw := NewAuthMiddleware(jwtService)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/api/workspaces", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}
			rr := httptest.NewRecorder()

			mw.Authenticate(echoUserID).ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			if tc.expectedError != "" {
				assert.Contains(t, rr.Body.String(), tc.expectedError)
			} else {
				assert.Equal(t, userID.String(), rr.Body.String())
			}
		})
	}
}

func TestAuthMiddleware_UnexpectedValidationError(t *testing.T) {
	t.Parallel()

	mw := NewAuthMiddleware(&fakeJWTService{err: errors.New("keystore unavailable")})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()

	mw.Authenticate(echoUserID).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "Authentication error")
	assert.NotContains(t, rr.Body.String(), "keystore")
}

func TestAuthMiddleware_WrongTokenType(t *testing.T) {
	t.Parallel()

	mw := NewAuthMiddleware(&fakeJWTService{err: auth.ErrWrongTokenType})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()

	mw.Authenticate(echoUserID).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTraceMiddleware(t *testing.T) {
	t.Parallel()

	var traceID string
	handler := TraceMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = shared.GetTraceID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Len(t, traceID, 32)
}
