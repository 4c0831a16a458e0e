package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/marketauth"
	"github.com/MrEthical07/marketauth/jwt"
	"github.com/MrEthical07/marketauth/notify"
	"github.com/MrEthical07/marketauth/store/memory"
)

type apiEnv struct {
	engine *marketauth.Engine
	queue  *notify.ChannelQueue
	router http.Handler
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	priv, pub, err := jwt.GenerateEd25519PEM()
	require.NoError(t, err)

	cfg := marketauth.DefaultConfig()
	cfg.Token.PrivateKey = priv
	cfg.Token.PublicKey = pub
	cfg.Lookup.Secret = []byte(strings.Repeat("s", 32))
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.KeyLength = 16

	queue := notify.NewChannelQueue(8)
	engine, err := marketauth.New().
		WithConfig(cfg).
		WithStore(memory.New()).
		WithNotifier(queue).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return &apiEnv{
		engine: engine,
		queue:  queue,
		router: NewRouter(&RouterDeps{Service: engine}),
	}
}

func (env *apiEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload string
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = string(raw)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	req.RemoteAddr = "203.0.113.50:40000"
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func (env *apiEnv) login(t *testing.T, kind, email, pw string) string {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/v1/"+kind+"/login", "", map[string]string{"email": email, "password": pw})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res marketauth.LoginResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotEmpty(t, res.Token)
	return res.Token
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/admin/register", "", map[string]string{
		"email": "Ops@Example.com", "password": "correct-horse-42", "display_name": "Ops",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"ACTIVE"`)

	rec = env.do(t, http.MethodPost, "/v1/admin/register", "", map[string]string{
		"email": "ops@example.com", "password": "correct-horse-42",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	token := env.login(t, "admin", "ops@example.com", "correct-horse-42")

	rec = env.do(t, http.MethodGet, "/v1/admin/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"ops@example.com"`)

	rec = env.do(t, http.MethodGet, "/v1/admin/sessions", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Sessions []sessionView `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Sessions, 1)
	assert.True(t, history.Sessions[0].Current)
	assert.Equal(t, "203.0.113.50", history.Sessions[0].Origin)
	assert.Equal(t, "Firefox", history.Sessions[0].Browser)

	rec = env.do(t, http.MethodGet, "/v1/vendor/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/admin/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"closed":true}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/v1/admin/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"closed":false}`, rec.Body.String())
}

func TestLoginFailuresOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	_, err := env.engine.Register(context.Background(), "user", marketauth.RegisterRequest{
		Email: "buyer@example.com", Password: "correct-horse-42",
	})
	require.NoError(t, err)

	unknown := env.do(t, http.MethodPost, "/v1/user/login", "", map[string]string{"email": "ghost@example.com", "password": "whatever-123"})
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, CodeInvalidCredentials, decodeError(t, unknown).Code)

	unverified := env.do(t, http.MethodPost, "/v1/user/login", "", map[string]string{"email": "buyer@example.com", "password": "correct-horse-42"})
	require.Equal(t, http.StatusForbidden, unverified.Code)
	assert.Equal(t, CodeAccountUnverified, decodeError(t, unverified).Code)

	invalid := env.do(t, http.MethodPost, "/v1/user/login", "", map[string]string{"email": "not-an-email", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, invalid.Code)
}

func TestLockoutOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	_, err := env.engine.Register(context.Background(), "admin", marketauth.RegisterRequest{
		Email: "root@example.com", Password: "correct-horse-42",
	})
	require.NoError(t, err)

	bad := map[string]string{"email": "root@example.com", "password": "wrong-password-1"}
	for want := 4; want >= 1; want-- {
		rec := env.do(t, http.MethodPost, "/v1/admin/login", "", bad)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeError(t, rec)
		require.NotNil(t, body.RemainingAttempts)
		assert.Equal(t, want, *body.RemainingAttempts)
	}

	rec := env.do(t, http.MethodPost, "/v1/admin/login", "", bad)
	require.Equal(t, http.StatusLocked, rec.Code)
	assert.Equal(t, 24, decodeError(t, rec).RetryAfterHours)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestPasswordResetOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	_, err := env.engine.Register(context.Background(), "admin", marketauth.RegisterRequest{
		Email: "desk@example.com", Password: "correct-horse-42",
	})
	require.NoError(t, err)

	known := env.do(t, http.MethodPost, "/v1/admin/password/forgot", "", map[string]string{"email": "desk@example.com"})
	unknown := env.do(t, http.MethodPost, "/v1/admin/password/forgot", "", map[string]string{"email": "nobody@example.com"})
	require.Equal(t, http.StatusOK, known.Code)
	require.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	notice, err := env.queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.50", notice.Origin)
	link, err := url.Parse(notice.Link)
	require.NoError(t, err)
	resetToken := link.Query().Get("token")
	require.NotEmpty(t, resetToken)

	reset := map[string]string{"email": "desk@example.com", "token": resetToken, "new_password": "brand-new-pass-7"}
	rec := env.do(t, http.MethodPost, "/v1/admin/password/reset", "", reset)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/v1/admin/password/reset", "", reset)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInvalidResetToken, decodeError(t, rec).Code)

	token := env.login(t, "admin", "desk@example.com", "brand-new-pass-7")

	rec = env.do(t, http.MethodPost, "/v1/admin/password/change", token, map[string]string{
		"old_password": "brand-new-pass-7", "new_password": "brand-new-pass-7",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, CodePasswordReuse, decodeError(t, rec).Code)

	rec = env.do(t, http.MethodPost, "/v1/admin/password/change", token, map[string]string{
		"old_password": "brand-new-pass-7", "new_password": "third-pass-word-8",
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	env.login(t, "admin", "desk@example.com", "third-pass-word-8")
}

func TestHealthOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"store_available":true`)
	assert.NotContains(t, rec.Body.String(), "redis_available")
}
