package identityhandler

import (
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divs-identity/divs-agent/interfaces"
	"github.com/divs-identity/divs-agent/registry"
	"github.com/divs-identity/divs-agent/storage"
	"github.com/divs-identity/divs-agent/wallet"
	"github.com/divs-identity/divs-agent/workflow"
)

func setupRouter(t *testing.T) (*chi.Mux, *wallet.LocalWallet) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	owner, err := wallet.NewLocalWallet(key, big.NewInt(1337))
	require.NoError(t, err)

	gateway := registry.NewMockGatewayClient()
	gateway.SetSigner(owner.Address())

	registrar := workflow.NewRegistrar(logger, gateway, storage.NewMemoryPinner(), owner, nil)
	router := chi.NewRouter()
	NewHandler(registrar, logger).RegisterRoutes(router)
	return router, owner
}

func call(t *testing.T, router http.Handler, method, path, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, reader))
	respBody, err := io.ReadAll(w.Result().Body)
	require.NoError(t, err)
	return w.Code, respBody
}

func TestIdentityLifecycle(t *testing.T) {
	router, owner := setupRouter(t)

	status, _ := call(t, router, http.MethodGet, "/api/identity", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, router, http.MethodPut, "/api/identity", `{"Name":"Alice"}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, body := call(t, router, http.MethodPost, "/api/identity", `{"Name":"Alice","DOB":"1990-01-01","Phone":5550100}`)
	require.Equal(t, http.StatusCreated, status, string(body))

	var reg workflow.Registration
	require.NoError(t, json.Unmarshal(body, &reg))
	assert.False(t, reg.ContentID.IsZero())
	assert.NotEmpty(t, reg.TxHash)

	status, body = call(t, router, http.MethodGet, "/api/identity", "")
	require.Equal(t, http.StatusOK, status, string(body))
	var profile interfaces.UserProfile
	require.NoError(t, json.Unmarshal(body, &profile))
	assert.Equal(t, owner.Address(), profile.Wallet)
	assert.Equal(t, reg.ContentID, profile.IPFSHash)
	assert.True(t, profile.Registered)

	status, body = call(t, router, http.MethodGet, "/api/identity/record", "")
	require.Equal(t, http.StatusOK, status, string(body))
	assert.JSONEq(t, `{"DOB":"1990-01-01","Name":"Alice","Phone":5550100}`, string(body))

	status, _ = call(t, router, http.MethodPost, "/api/identity", `{"Name":"Alice"}`)
	assert.Equal(t, http.StatusConflict, status)

	status, body = call(t, router, http.MethodPut, "/api/identity", `{"Name":"Alice B."}`)
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = call(t, router, http.MethodGet, "/api/identity/record", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"Name":"Alice B."}`, string(body))
}

func TestRegister_BadBody(t *testing.T) {
	router, _ := setupRouter(t)

	for _, body := range []string{"", "[1,2]", "not json", "{}"} {
		status, _ := call(t, router, http.MethodPost, "/api/identity", body)
		assert.Equal(t, http.StatusBadRequest, status, body)
	}
}
