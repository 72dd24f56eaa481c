package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/application"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/kafka"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/response"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
	userDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/user"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/repository/memory"
)

type testEnv struct {
	router *gin.Engine
	store  *memory.Store
	jwt    *auth.JWTManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	jwtManager := auth.NewJWTManager("test-secret", 15*time.Minute, time.Hour)
	log := zap.NewNop()

	adoptionService := application.NewAdoptionService(store, store.Ledgers(), kafka.NopPublisher{}, time.Second, log)
	petService := application.NewPetService(store.Pets(), store, log)
	photoService := application.NewPhotoService(store.Photos(), store.Pets(), log)
	userService := application.NewUserService(store.Users(), jwtManager, log)

	router := gin.New()
	NewAdoptionHandler(adoptionService).RegisterRoutes(&router.RouterGroup, jwtManager)
	NewAdminAdoptionHandler(adoptionService).RegisterRoutes(&router.RouterGroup, jwtManager)
	NewPetHandler(petService).RegisterRoutes(&router.RouterGroup, jwtManager)
	NewPhotoHandler(photoService).RegisterRoutes(&router.RouterGroup, jwtManager)
	NewUserHandler(userService).RegisterRoutes(&router.RouterGroup, jwtManager)

	return &testEnv{router: router, store: store, jwt: jwtManager}
}

// login seeds a user with the given role and returns its id and an access token.
func (e *testEnv) login(t *testing.T, username string, role auth.Role) (uuid.UUID, string) {
	t.Helper()
	u, err := userDomain.NewUser(username, role, username+"@example.com", "hash")
	require.NoError(t, err)
	require.NoError(t, e.store.Users().Save(context.Background(), u))

	tokens, err := e.jwt.GenerateTokenPair(u.ID(), role)
	require.NoError(t, err)
	return u.ID(), tokens.AccessToken
}

func (e *testEnv) seedPet(t *testing.T, tag string, priceCents int64) uuid.UUID {
	t.Helper()
	p, err := petDomain.NewPet(tag, petDomain.KindCat, 2, priceCents, petDomain.GenderFemale)
	require.NoError(t, err)
	require.NoError(t, e.store.Pets().Save(context.Background(), p))
	return p.ID()
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorBody `json:"error"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.True(t, env.Success, w.Body.String())
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotNil(t, env.Error, w.Body.String())
	return env.Error.Code
}

func TestAdoptionFlow(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.login(t, "alice", auth.RoleCustomer)
	p1 := env.seedPet(t, "milo", 2000)
	p2 := env.seedPet(t, "luna", 3000)

	w := env.do(t, http.MethodPost, "/api/v1/adoptions", token, gin.H{"pets": []uuid.UUID{p1, p2}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ledger := decode[application.LedgerDTO](t, w)
	assert.Equal(t, userID, ledger.UserID)
	assert.Equal(t, int64(5000), ledger.TotalCents)
	assert.Equal(t, "pending", ledger.Status)

	w = env.do(t, http.MethodPost, "/api/v1/adoptions/pay", token, gin.H{"amount": 30})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary := decode[application.PaymentSummaryDTO](t, w)
	assert.Equal(t, int64(2000), summary.RemainingCents)

	w = env.do(t, http.MethodPost, "/api/v1/adoptions/pay", token, gin.H{"amount": "20.00"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "completed", decode[application.PaymentSummaryDTO](t, w).Status)

	w = env.do(t, http.MethodPost, "/api/v1/adoptions/cancel", token, gin.H{"pets": []uuid.UUID{p1}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[application.CancelResultDTO](t, w)
	assert.Equal(t, int64(2000), result.RefundCents)
	assert.Equal(t, int64(3000), result.Ledger.PayMoneyCents)
	assert.Equal(t, "completed", result.Ledger.Status)

	w = env.do(t, http.MethodGet, "/api/v1/adoptions/users/"+userID.String()+"/payment-summary", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(3000), decode[application.PaymentSummaryDTO](t, w).TotalCents)

	w = env.do(t, http.MethodGet, "/api/v1/adoptions/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[application.LedgerDTO](t, w).Pets, 1)
}

func TestAdoption_Errors(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.login(t, "alice", auth.RoleCustomer)
	pet := env.seedPet(t, "milo", 2000)

	t.Run("no token", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/adoptions", "", gin.H{"pets": []uuid.UUID{pet}})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("empty selection", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/adoptions", token, gin.H{"pets": []uuid.UUID{}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("overpayment", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/adoptions", token, gin.H{"pets": []uuid.UUID{pet}, "pay_money": 25})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "OVERPAYMENT", errorCode(t, w))
	})

	t.Run("pay without ledger", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/adoptions/pay", token, gin.H{"amount": 5})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown pet", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/adoptions", token, gin.H{"pets": []uuid.UUID{uuid.New()}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_REQUEST", errorCode(t, w))
	})
}

func TestAdoption_ActingForOthers(t *testing.T) {
	env := newTestEnv(t)
	aliceID, aliceToken := env.login(t, "alice", auth.RoleCustomer)
	bobID, _ := env.login(t, "bob", auth.RoleCustomer)
	_, staffToken := env.login(t, "staff", auth.RoleEmployee)
	pet := env.seedPet(t, "milo", 2000)

	w := env.do(t, http.MethodPost, "/api/v1/adoptions", aliceToken, gin.H{"user_id": bobID, "pets": []uuid.UUID{pet}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/adoptions/users/"+bobID.String(), aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/adoptions", staffToken, gin.H{"user_id": aliceID, "pets": []uuid.UUID{pet}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, aliceID, decode[application.LedgerDTO](t, w).UserID)

	w = env.do(t, http.MethodGet, "/api/v1/adoptions/users/"+aliceID.String(), staffToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminAdoptionRoutes(t *testing.T) {
	env := newTestEnv(t)
	_, customerToken := env.login(t, "alice", auth.RoleCustomer)
	_, adminToken := env.login(t, "root", auth.RoleAdmin)
	pet := env.seedPet(t, "milo", 2000)

	w := env.do(t, http.MethodPost, "/api/v1/adoptions", customerToken, gin.H{"pets": []uuid.UUID{pet}, "pay_money": "20"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ledger := decode[application.LedgerDTO](t, w)

	w = env.do(t, http.MethodGet, "/api/v1/admin/stats/adoptions", customerToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/admin/stats/adoptions", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[application.LedgerStatsDTO](t, w)
	assert.Equal(t, int64(1), stats.ByStatus["completed"])

	w = env.do(t, http.MethodGet, "/api/v1/admin/adoptions/"+ledger.ID.String(), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[application.LedgerDTO](t, w).History, 2)

	w = env.do(t, http.MethodGet, "/api/v1/admin/adoptions/pets/"+pet.String(), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ledger.ID, decode[application.LedgerDTO](t, w).ID)

	w = env.do(t, http.MethodGet, "/api/v1/admin/adoptions?page=1&limit=5", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]application.LedgerDTO](t, w), 1)

	w = env.do(t, http.MethodDelete, "/api/v1/admin/pets", adminToken, gin.H{"ids": []uuid.UUID{pet}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPetRoutes(t *testing.T) {
	env := newTestEnv(t)
	_, customerToken := env.login(t, "alice", auth.RoleCustomer)
	_, staffToken := env.login(t, "staff", auth.RoleEmployee)

	body := gin.H{"tag": "Milo", "kind": "cat", "age": 2, "price": "45.50", "gender": "F"}

	w := env.do(t, http.MethodPost, "/api/v1/pets", customerToken, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/pets", staffToken, gin.H{"tag": "x", "kind": "cat", "age": 2, "price": 1, "gender": "Q"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/pets", staffToken, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[application.PetDTO](t, w)
	assert.Equal(t, int64(4550), created.PriceCents)

	w = env.do(t, http.MethodGet, "/api/v1/pets/tag/MILO", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[application.PetDTO](t, w).ID)

	w = env.do(t, http.MethodGet, "/api/v1/pets?kind=cat&adopted=false", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]application.PetDTO](t, w), 1)

	w = env.do(t, http.MethodGet, "/api/v1/pets/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/pets/"+created.ID.String()+"/photos", staffToken, gin.H{"photo_url": "https://cdn.example.com/milo.jpg"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/v1/pets/"+created.ID.String()+"/photos", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]application.PhotoDTO](t, w), 1)
}

func TestAuthRoutes(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{"username": "alice", "email": "alice@example.com", "password": "s3cret-pass"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice", "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	login := decode[application.LoginResponse](t, w)

	w = env.do(t, http.MethodGet, "/api/v1/users/me", login.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decode[application.UserDTO](t, w).Username)

	w = env.do(t, http.MethodGet, "/api/v1/admin/users", login.Tokens.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
