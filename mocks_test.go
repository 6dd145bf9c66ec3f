package auth_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-auth-client"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRemoteAPI implements auth.RemoteAPI
type MockRemoteAPI struct {
	mock.Mock
}

func (m *MockRemoteAPI) Login(ctx context.Context, credentials auth.Credentials) (*auth.AuthResponse, error) {
	args := m.Called(ctx, credentials)
	res, _ := args.Get(0).(*auth.AuthResponse)
	return res, args.Error(1)
}

func (m *MockRemoteAPI) Register(ctx context.Context, payload map[string]any) (*auth.AuthResponse, error) {
	args := m.Called(ctx, payload)
	res, _ := args.Get(0).(*auth.AuthResponse)
	return res, args.Error(1)
}

// failingSlots is a SlotStorage whose operations can be made to fail.
type failingSlots struct {
	*auth.MemorySlots
	readErr   error
	writeErr  error
	deleteErr error
}

func newFailingSlots() *failingSlots {
	return &failingSlots{MemorySlots: auth.NewMemorySlots()}
}

func (f *failingSlots) ReadSlots(ctx context.Context) (*auth.PersistedSlots, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.MemorySlots.ReadSlots(ctx)
}

func (f *failingSlots) WriteSlots(ctx context.Context, slots auth.PersistedSlots) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.MemorySlots.WriteSlots(ctx, slots)
}

func (f *failingSlots) DeleteSlots(ctx context.Context) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.MemorySlots.DeleteSlots(ctx)
}

var errBackendDown = errors.New("backend down")

// activityRecorder collects activity events.
type activityRecorder struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *activityRecorder) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *activityRecorder) types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

var fixedNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// signToken mints an HS256 token; the signature is irrelevant to the decoder.
func signToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(claims))
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

// rawToken builds a token from arbitrary header and payload JSON.
func rawToken(t *testing.T, header, payload any) string {
	t.Helper()
	enc := func(v any) string {
		var b []byte
		switch val := v.(type) {
		case string:
			b = []byte(val)
		default:
			var err error
			b, err = json.Marshal(val)
			require.NoError(t, err)
		}
		return base64.RawURLEncoding.EncodeToString(b)
	}
	return enc(header) + "." + enc(payload) + ".c2lnbmF0dXJl"
}
