package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/nodekeeper/internal/client/auth"
	"github.com/iudanet/nodekeeper/internal/crypto"
	"github.com/iudanet/nodekeeper/pkg/api"
)

const (
	testPublicKey = "02a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"
	testPassword  = "password123"
	testToken     = "token-1"
)

var testSeedPhrase = strings.Repeat("abandon ", 23) + "art"

// fakeIO пишет вывод в буфер и отдает заранее заданные пароли
type fakeIO struct {
	out       bytes.Buffer
	passwords []string
}

func (f *fakeIO) Println(a ...any) {
	f.out.WriteString(fmt.Sprintln(a...))
}

func (f *fakeIO) Printf(format string, a ...any) {
	f.out.WriteString(fmt.Sprintf(format, a...))
}

func (f *fakeIO) ReadInput(string) (string, error) {
	return "", errors.New("no input")
}

func (f *fakeIO) ReadPassword(string) (string, error) {
	if len(f.passwords) == 0 {
		return "", errors.New("no password")
	}
	p := f.passwords[0]
	f.passwords = f.passwords[1:]
	return p, nil
}

func (f *fakeIO) Write(p []byte) (int, error) {
	return f.out.Write(p)
}

// fakeServer имитирует HTTP API сервера
type fakeServer struct {
	t          *testing.T
	lastOffer  api.CreateOfferRequest
	lastEnroll api.NodeRegisterRequest
	creds      []byte
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	fs := &fakeServer{t: t, creds: []byte("device-cert-and-key")}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/register", fs.signup)
	mux.HandleFunc("POST /api/v1/auth/login", fs.login)
	mux.HandleFunc("POST /api/v1/node/register", fs.enroll)
	mux.HandleFunc("POST /api/v1/node/recover", fs.enroll)
	mux.HandleFunc("GET /api/v1/node/info", fs.info)
	mux.HandleFunc("GET /api/v1/node/balance", fs.balance)
	mux.HandleFunc("POST /api/v1/node/offer", fs.offer)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fs, srv
}

func (fs *fakeServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (fs *fakeServer) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer "+testToken {
		fs.writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "Unauthorized", Message: "invalid or expired token"})
		return false
	}
	return true
}

func (fs *fakeServer) signup(w http.ResponseWriter, r *http.Request) {
	var req api.SignupRequest
	require.NoError(fs.t, json.NewDecoder(r.Body).Decode(&req))

	seed, err := crypto.EncryptToBase64([]byte(testSeedPhrase), req.Password)
	require.NoError(fs.t, err)

	fs.writeJSON(w, http.StatusCreated, api.SignupResponse{
		AccountID:     "account-1",
		EncryptedSeed: seed,
		Token:         testToken,
		ExpiresIn:     3600,
	})
}

func (fs *fakeServer) login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	require.NoError(fs.t, json.NewDecoder(r.Body).Decode(&req))

	if req.Password != testPassword {
		fs.writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "Unauthorized", Message: "invalid credentials"})
		return
	}
	fs.writeJSON(w, http.StatusOK, api.LoginResponse{Token: testToken, ExpiresIn: 3600})
}

func (fs *fakeServer) enroll(w http.ResponseWriter, r *http.Request) {
	if !fs.authorized(w, r) {
		return
	}
	var req api.NodeRegisterRequest
	require.NoError(fs.t, json.NewDecoder(r.Body).Decode(&req))
	fs.lastEnroll = req

	creds, err := crypto.EncryptToBase64(fs.creds, fs.lastEnroll.Password)
	require.NoError(fs.t, err)
	fs.writeJSON(w, http.StatusOK, api.NodeCredentialsResponse{EncryptedDeviceCreds: creds})
}

func (fs *fakeServer) info(w http.ResponseWriter, r *http.Request) {
	if !fs.authorized(w, r) {
		return
	}
	assert.Equal(fs.t, testPassword, r.Header.Get(api.PasswordHeader))
	fs.writeJSON(w, http.StatusOK, api.NodeInfoResponse{
		NodeID:            "02deadbeef",
		Alias:             "keeper",
		Network:           "testnet",
		BlockHeight:       2500000,
		NumActiveChannels: 2,
	})
}

func (fs *fakeServer) balance(w http.ResponseWriter, r *http.Request) {
	if !fs.authorized(w, r) {
		return
	}
	fs.writeJSON(w, http.StatusOK, api.BalanceResponse{
		OnchainBalanceSat:  1,
		OnchainBalanceMsat: 1500,
		TotalBalanceSat:    1,
		TotalBalanceMsat:   1500,
	})
}

func (fs *fakeServer) offer(w http.ResponseWriter, r *http.Request) {
	if !fs.authorized(w, r) {
		return
	}
	var req api.CreateOfferRequest
	require.NoError(fs.t, json.NewDecoder(r.Body).Decode(&req))
	fs.lastOffer = req
	fs.writeJSON(w, http.StatusCreated, api.OfferResponse{
		AmountMsat:  fs.lastOffer.AmountMsat,
		Bolt12:      "lno1qcp4256ypq",
		OfferID:     "offer-1",
		Description: fs.lastOffer.Description,
		Active:      true,
	})
}

// runCLI выполняет одну команду как отдельный запуск клиента
func runCLI(t *testing.T, serverURL, dbPath string, io *fakeIO, args ...string) error {
	t.Helper()
	c := New(io)
	defer func() { require.NoError(t, c.Close()) }()

	root := c.RootCommand("test")
	root.SetArgs(append([]string{"--server", serverURL, "--db", dbPath}, args...))
	return root.ExecuteContext(context.Background())
}

func TestCli_Version(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "client.db")
	io := &fakeIO{}

	require.NoError(t, runCLI(t, "http://unused", dbPath, io, "version"))

	assert.Contains(t, io.out.String(), "NodeKeeper Client")
	assert.Contains(t, io.out.String(), "Version: test")
	assert.NoFileExists(t, dbPath, "version не открывает базу")
}

func TestCli_FullFlow(t *testing.T) {
	t.Setenv(PasswordEnv, testPassword)
	fs, srv := newFakeServer(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "client.db")

	run := func(args ...string) string {
		t.Helper()
		io := &fakeIO{}
		require.NoError(t, runCLI(t, srv.URL, dbPath, io, args...), "command %v", args)
		return io.out.String()
	}

	out := run("signup", testPublicKey)
	assert.Contains(t, out, "Account created")
	assert.Contains(t, out, "account-1")

	out = run("status")
	assert.Contains(t, out, "Status: Authenticated")
	assert.Contains(t, out, "Public key: "+testPublicKey)
	assert.Contains(t, out, "Seed stored locally: yes")
	assert.Contains(t, out, "Node registered: no")

	out = run("seed", "show")
	assert.Contains(t, out, " 1. abandon")
	assert.Contains(t, out, "24. art")

	out = run("node", "register")
	assert.Contains(t, out, "Node registered")
	assert.NotEmpty(t, fs.lastEnroll.EncryptedSeed, "клиент отправляет сохраненный seed")
	assert.Equal(t, testPassword, fs.lastEnroll.Password)

	out = run("status")
	assert.Contains(t, out, "Node registered: yes")

	out = run("node", "info")
	assert.Contains(t, out, "02deadbeef")
	assert.Contains(t, out, "testnet")

	out = run("node", "balance")
	assert.Contains(t, out, "Total:    1 sat (1500 msat)")

	out = run("node", "offer", "--amount-msat", "50000", "--description", "coffee")
	assert.Contains(t, out, "lno1qcp4256ypq")
	assert.Contains(t, out, "Amount:   50000 msat")
	require.NotNil(t, fs.lastOffer.AmountMsat)
	assert.Equal(t, uint64(50000), *fs.lastOffer.AmountMsat)

	out = run("node", "offer")
	assert.Contains(t, out, "Amount:   any")
	assert.Nil(t, fs.lastOffer.AmountMsat)

	credsPath := filepath.Join(dir, "creds.bin")
	run("node", "export-creds", "-o", credsPath)
	creds, err := os.ReadFile(credsPath)
	require.NoError(t, err)
	assert.Equal(t, fs.creds, creds)

	// login тем же ключом сохраняет seed и креды
	out = run("login")
	assert.Contains(t, out, "Login successful")
	out = run("status")
	assert.Contains(t, out, "Seed stored locally: yes")
	assert.Contains(t, out, "Node registered: yes")

	out = run("logout")
	assert.Contains(t, out, "Logout successful")

	out = run("status")
	assert.Contains(t, out, "Not authenticated")
}

func TestCli_NodeCommandsRequireSession(t *testing.T) {
	t.Setenv(PasswordEnv, testPassword)
	_, srv := newFakeServer(t)
	dbPath := filepath.Join(t.TempDir(), "client.db")

	for _, args := range [][]string{
		{"node", "register"},
		{"node", "recover"},
		{"node", "info"},
		{"node", "balance"},
		{"node", "offer"},
	} {
		err := runCLI(t, srv.URL, dbPath, &fakeIO{}, args...)
		require.ErrorIs(t, err, auth.ErrNotAuthenticated, "command %v", args)
	}

	err := runCLI(t, srv.URL, dbPath, &fakeIO{}, "seed", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no encrypted seed stored")

	err = runCLI(t, srv.URL, dbPath, &fakeIO{}, "login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "public key required")
}

func TestCli_PasswordPrompt(t *testing.T) {
	t.Setenv(PasswordEnv, "")
	_, srv := newFakeServer(t)
	dbPath := filepath.Join(t.TempDir(), "client.db")

	t.Run("wrong password from prompt", func(t *testing.T) {
		err := runCLI(t, srv.URL, dbPath, &fakeIO{passwords: []string{"wrongpassword"}}, "login", testPublicKey)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid credentials")
	})

	t.Run("empty password", func(t *testing.T) {
		err := runCLI(t, srv.URL, dbPath, &fakeIO{passwords: []string{""}}, "login", testPublicKey)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "password cannot be empty")
	})

	t.Run("correct password", func(t *testing.T) {
		io := &fakeIO{passwords: []string{testPassword}}
		require.NoError(t, runCLI(t, srv.URL, dbPath, io, "login", testPublicKey))
		assert.Contains(t, io.out.String(), "Login successful")
	})

	t.Run("seed show with wrong password", func(t *testing.T) {
		require.NoError(t, runCLI(t, srv.URL, dbPath, &fakeIO{passwords: []string{testPassword}}, "signup", testPublicKey))

		err := runCLI(t, srv.URL, dbPath, &fakeIO{passwords: []string{"otherpassword"}}, "seed", "show")
		require.ErrorIs(t, err, crypto.ErrCrypto)
	})
}

func TestCli_RegisterWithSeedFile(t *testing.T) {
	t.Setenv(PasswordEnv, testPassword)
	fs, srv := newFakeServer(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "client.db")

	require.NoError(t, runCLI(t, srv.URL, dbPath, &fakeIO{}, "signup", testPublicKey))

	own := strings.Repeat("abandon ", 11) + "about"
	seedFile := filepath.Join(dir, "seed.txt")
	require.NoError(t, os.WriteFile(seedFile, []byte("  "+own+"\n"), 0600))

	require.NoError(t, runCLI(t, srv.URL, dbPath, &fakeIO{}, "node", "recover", "--seed-file", seedFile))

	plain, err := crypto.DecryptFromBase64(fs.lastEnroll.EncryptedSeed, testPassword)
	require.NoError(t, err)
	assert.Equal(t, own, string(plain))
}

func TestEncryptSeedFile_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := encryptSeedFile(filepath.Join(dir, "missing.txt"), testPassword)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read seed file")

	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("abandon abandon abandon"), 0600))
	_, err = encryptSeedFile(bad, testPassword)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid BIP39")
}
