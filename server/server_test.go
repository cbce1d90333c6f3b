package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jrsteele09/go-agent-chat/chat"
	"github.com/jrsteele09/go-agent-chat/identity/localidp"
	"github.com/jrsteele09/go-agent-chat/internal/config"
	"github.com/jrsteele09/go-agent-chat/internal/metrics"
	"github.com/jrsteele09/go-agent-chat/server"
	"github.com/jrsteele09/go-agent-chat/server/loginsession"
	"github.com/jrsteele09/go-agent-chat/token"
	fakeuserrepo "github.com/jrsteele09/go-agent-chat/users/repofake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	testName     = "Alice Smith"
	testEmail    = "alice@example.com"
	testSSOEmail = "bob@corp.io"
	testPassword = "Str0ngPassword"
	testCode     = "424242"
)

type capturedCodes struct {
	mu    sync.Mutex
	codes map[string]string
}

func (c *capturedCodes) SendConfirmationCode(_ context.Context, email, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[email] = code
	return nil
}

func (c *capturedCodes) codeFor(email string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[email]
}

type testFixture struct {
	codes    *capturedCodes
	sessions *loginsession.InMemoryRepo
	server   *server.Server
	http     *httptest.Server
	client   *http.Client
}

func setupTestFixture(t *testing.T, env ...string) *testFixture {
	t.Helper()

	t.Setenv("ENV", "TEST")
	t.Setenv("SSO_VERIFIED_DOMAINS", "")
	for i := 0; i+1 < len(env); i += 2 {
		t.Setenv(env[i], env[i+1])
	}

	f := &testFixture{
		codes:    &capturedCodes{codes: map[string]string{}},
		sessions: loginsession.NewInMemoryRepo(),
	}
	issuer := token.NewIssuer("local", "agent-chat", token.NewHMACSigner("test-secret"))
	provider := localidp.New(
		fakeuserrepo.NewFakeUserRepo(),
		issuer,
		token.NewInMemoryRevokedTokenCache(),
		localidp.WithCodeSender(f.codes),
		localidp.WithCodeGenerator(func() (string, error) { return testCode, nil }),
	)

	registry := prometheus.NewRegistry()
	s, err := server.New(config.New(), server.Dependencies{
		Provider:      provider,
		LoginSessions: f.sessions,
		ChatBackend:   chat.NewSimulated(0),
		Metrics:       metrics.NewCollector(registry),
		Gatherer:      registry,
	})
	require.NoError(t, err)
	f.server = s
	f.http = httptest.NewServer(s)
	t.Cleanup(func() {
		f.http.Close()
		s.Close()
	})

	f.client = f.newClient(t)
	return f
}

func (f *testFixture) newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (f *testFixture) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := f.client.Get(f.http.URL + path)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (f *testFixture) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := f.client.PostForm(f.http.URL+path, form)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (f *testFixture) postJSON(t *testing.T, path string, body any, out any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, f.http.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (f *testFixture) signUpAndVerify(t *testing.T) {
	t.Helper()
	resp, _ := f.post(t, server.RouteSignup, url.Values{
		"email":            {testEmail},
		"name":             {testName},
		"password":         {testPassword},
		"confirm_password": {testPassword},
	})
	require.Equal(t, server.RouteVerify, resp.Request.URL.Path)

	resp, _ = f.post(t, server.RouteVerify, url.Values{"code": {f.codes.codeFor(testEmail)}})
	require.Equal(t, server.RouteChat, resp.Request.URL.Path)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestUnauthenticatedClientIsSentToLogin(t *testing.T) {
	f := setupTestFixture(t)

	for _, path := range []string{"/", server.RouteChat} {
		resp, body := f.get(t, path)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, server.RouteLogin, resp.Request.URL.Path, path)
		require.Contains(t, body, "Sign in")
	}
}

func TestClientCookieIsSessionScoped(t *testing.T) {
	f := setupTestFixture(t)

	resp, err := http.Get(f.http.URL + server.RouteLogin)
	require.NoError(t, err)
	defer resp.Body.Close()

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == "client_id" {
			found = true
			require.True(t, c.HttpOnly)
			require.Zero(t, c.MaxAge)
			require.True(t, c.Expires.IsZero())
		}
	}
	require.True(t, found)
}

func TestLoginWithUnknownUserRerendersWithError(t *testing.T) {
	f := setupTestFixture(t)

	resp, body := f.post(t, server.RouteAuthLogin, url.Values{"email": {testEmail}, "password": {testPassword}})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Contains(t, body, "User not found. Please sign up first.")
}

func TestSignupVerifyThenChat(t *testing.T) {
	f := setupTestFixture(t)
	f.signUpAndVerify(t)

	resp, body := f.get(t, server.RouteChat)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, server.RouteChat, resp.Request.URL.Path)
	require.Contains(t, body, testName)
	require.Contains(t, body, "How can I help you today?")
	require.Equal(t, 1, f.sessions.Len())
}

func TestSignupPasswordMismatch(t *testing.T) {
	f := setupTestFixture(t)

	resp, body := f.post(t, server.RouteSignup, url.Values{
		"email":            {testEmail},
		"name":             {testName},
		"password":         {testPassword},
		"confirm_password": {testPassword + "x"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Contains(t, body, "Passwords do not match")
}

func TestVerifyWithoutPendingSignupRedirects(t *testing.T) {
	f := setupTestFixture(t)

	resp, _ := f.get(t, server.RouteVerify)
	require.Equal(t, server.RouteLogin, resp.Request.URL.Path)
	require.Equal(t, "signup", resp.Request.URL.Query().Get("tab"))
}

func TestLoginAfterLogout(t *testing.T) {
	f := setupTestFixture(t)
	f.signUpAndVerify(t)

	resp, _ := f.post(t, server.RouteAuthLogout, nil)
	require.Equal(t, server.RouteLogin, resp.Request.URL.Path)
	require.Zero(t, f.sessions.Len())

	resp, _ = f.get(t, server.RouteChat)
	require.Equal(t, server.RouteLogin, resp.Request.URL.Path)

	resp, _ = f.post(t, server.RouteAuthLogin, url.Values{"email": {testEmail}, "password": {testPassword}})
	require.Equal(t, server.RouteChat, resp.Request.URL.Path)
}

func TestLoginJSON(t *testing.T) {
	f := setupTestFixture(t)
	f.signUpAndVerify(t)
	f.post(t, server.RouteAuthLogout, nil)

	var out server.OutcomeResponse
	resp := f.postJSON(t, server.RouteAuthLogin, map[string]string{"email": testEmail, "password": "wrong"}, &out)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, "login", out.Flow)
	require.Equal(t, "bad_credentials", out.Reason)

	resp = f.postJSON(t, server.RouteAuthLogin, map[string]string{"email": testEmail, "password": testPassword}, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "authenticated", out.State)
	require.Equal(t, server.RouteChat, out.Next)
}

func TestSSORoutesHiddenWithoutVerifiedDomains(t *testing.T) {
	f := setupTestFixture(t)

	resp, _ := f.post(t, server.RouteSSO, url.Values{"email": {testSSOEmail}})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, body := f.get(t, server.RouteLogin+"?tab=sso")
	require.NotContains(t, body, server.RouteSSO)
}

func TestSSOFlow(t *testing.T) {
	f := setupTestFixture(t, "SSO_VERIFIED_DOMAINS", "corp.io")

	resp, body := f.post(t, server.RouteSSO, url.Values{"email": {"eve@other.io"}})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Contains(t, body, "not enabled for company SSO")

	resp, _ = f.post(t, server.RouteSSO, url.Values{"email": {testSSOEmail}})
	require.Equal(t, server.RouteSSOVerify, resp.Request.URL.Path)

	resp, body = f.post(t, server.RouteSSOVerify, url.Values{"code": {"000000"}})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Contains(t, body, testSSOEmail)

	resp, _ = f.post(t, server.RouteSSOVerify, url.Values{"code": {f.codes.codeFor(testSSOEmail)}})
	require.Equal(t, server.RouteChat, resp.Request.URL.Path)

	var session server.SessionResponse
	getJSON(t, f, server.RouteAPISession, &session)
	require.True(t, session.Session.IsAuthenticated)
	require.Equal(t, testSSOEmail, session.Session.Email)
}

func TestSSOCanBeRestartedFromANewBrowserSession(t *testing.T) {
	f := setupTestFixture(t, "SSO_VERIFIED_DOMAINS", "corp.io")

	resp, _ := f.post(t, server.RouteSSO, url.Values{"email": {testSSOEmail}})
	require.Equal(t, server.RouteSSOVerify, resp.Request.URL.Path)

	// abandon verification and come back without the old cookie
	f.client = f.newClient(t)

	resp, _ = f.post(t, server.RouteSSO, url.Values{"email": {testSSOEmail}})
	require.Equal(t, server.RouteSSOVerify, resp.Request.URL.Path)

	resp, _ = f.post(t, server.RouteSSOVerify, url.Values{"code": {f.codes.codeFor(testSSOEmail)}})
	require.Equal(t, server.RouteChat, resp.Request.URL.Path)
}

func TestSignupAgainAfterCancel(t *testing.T) {
	f := setupTestFixture(t)
	form := url.Values{
		"email":            {testEmail},
		"name":             {testName},
		"password":         {testPassword},
		"confirm_password": {testPassword},
	}

	resp, _ := f.post(t, server.RouteSignup, form)
	require.Equal(t, server.RouteVerify, resp.Request.URL.Path)
	resp, _ = f.post(t, server.RouteVerifyCancel, nil)
	require.Equal(t, server.RouteLogin, resp.Request.URL.Path)

	resp, _ = f.post(t, server.RouteSignup, form)
	require.Equal(t, server.RouteVerify, resp.Request.URL.Path)
	resp, _ = f.post(t, server.RouteVerify, url.Values{"code": {f.codes.codeFor(testEmail)}})
	require.Equal(t, server.RouteChat, resp.Request.URL.Path)

	f.post(t, server.RouteAuthLogout, nil)
	resp, _ = f.post(t, server.RouteAuthLogin, url.Values{"email": {testEmail}, "password": {testPassword}})
	require.Equal(t, server.RouteChat, resp.Request.URL.Path)
}

func TestFailedSignupDropsEarlierVerification(t *testing.T) {
	f := setupTestFixture(t)

	resp, _ := f.post(t, server.RouteSignup, url.Values{
		"email":            {testEmail},
		"name":             {testName},
		"password":         {testPassword},
		"confirm_password": {testPassword},
	})
	require.Equal(t, server.RouteVerify, resp.Request.URL.Path)

	resp, _ = f.post(t, server.RouteSignup, url.Values{
		"email":            {"carol@example.com"},
		"name":             {"Carol"},
		"password":         {"weak"},
		"confirm_password": {"weak"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, body := f.get(t, server.RouteVerify)
	require.Equal(t, server.RouteLogin, resp.Request.URL.Path)
	require.NotContains(t, body, testEmail)
}

func TestChatMessageJSON(t *testing.T) {
	f := setupTestFixture(t)
	f.signUpAndVerify(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("message", "<b>hello</b>"))
	part, err := mw.CreateFormFile("files", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("some notes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, f.http.URL+server.RouteChatMessages, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]server.MessageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, chat.SenderUser, out["message"].Sender)
	require.Len(t, out["message"].Attachments, 1)
	require.Equal(t, "notes.txt", out["message"].Attachments[0].Name)
	require.Contains(t, out["message"].HTML, "&lt;b&gt;hello&lt;/b&gt;")
	require.Equal(t, chat.SenderBot, out["reply"].Sender)
	require.Contains(t, out["reply"].Text, "and 1 file(s)")
}

func TestChatEmptyMessageRejected(t *testing.T) {
	f := setupTestFixture(t)
	f.signUpAndVerify(t)

	resp, body := f.post(t, server.RouteChatMessages, url.Values{"message": {"   "}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body, "Please enter a message or attach a file")
}

func TestChatFormPostAndNewChat(t *testing.T) {
	f := setupTestFixture(t)
	f.signUpAndVerify(t)

	resp, body := f.post(t, server.RouteChatMessages, url.Values{"message": {"hello there"}})
	require.Equal(t, server.RouteChat, resp.Request.URL.Path)
	require.Contains(t, body, "hello there")
	require.Contains(t, body, "This is a simulated response")

	_, body = f.post(t, server.RouteChatNew, nil)
	require.NotContains(t, body, "hello there")
	require.Contains(t, body, "How can I help you today?")
}

func TestAttachmentTray(t *testing.T) {
	f := setupTestFixture(t)
	f.signUpAndVerify(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", "photo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\n0000"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, f.http.URL+server.RouteChatAttachments, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	require.NoError(t, err)

	var tray struct {
		Attachments []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"attachments"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tray))
	resp.Body.Close()
	require.Len(t, tray.Attachments, 1)
	require.Equal(t, "image/png", tray.Attachments[0].Type)

	removePath := strings.Replace(server.RouteChatAttachRemove, "{id}", tray.Attachments[0].ID, 1)
	resp = f.postJSON(t, removePath, map[string]string{}, &tray)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, tray.Attachments)

	resp = f.postJSON(t, removePath, map[string]string{}, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChatWebSocket(t *testing.T) {
	f := setupTestFixture(t)
	f.signUpAndVerify(t)

	wsURL := "ws" + strings.TrimPrefix(f.http.URL, "http") + server.RouteChatWebSocket
	dialer := websocket.Dialer{Jar: f.client.Jar, HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "message", "text": "over the socket"}))

	var senders []string
	for len(senders) < 2 {
		frame := readFrame(t, conn)
		if frame.Type == "message" {
			senders = append(senders, frame.Message.Sender)
			require.NotEmpty(t, frame.HTML)
		}
	}
	require.Equal(t, []string{"user", "bot"}, senders)

	// Signing out elsewhere pushes the unauthenticated session and closes the socket.
	f.post(t, server.RouteAuthLogout, nil)
	for {
		frame := readFrame(t, conn)
		if frame.Type == "session" {
			require.False(t, frame.Session.IsAuthenticated)
			break
		}
	}
}

func TestChatWebSocketRequiresSession(t *testing.T) {
	f := setupTestFixture(t)

	wsURL := "ws" + strings.TrimPrefix(f.http.URL, "http") + server.RouteChatWebSocket
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

type testFrame struct {
	Type    string `json:"type"`
	HTML    string `json:"html"`
	Message struct {
		Sender string `json:"sender"`
	} `json:"message"`
	Session struct {
		IsAuthenticated bool `json:"isAuthenticated"`
	} `json:"session"`
}

func readFrame(t *testing.T, conn *websocket.Conn) testFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame testFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func getJSON(t *testing.T, f *testFixture, path string, out any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.http.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestSessionAndConfigAPI(t *testing.T) {
	f := setupTestFixture(t, "APP_NAME", "Test Agent")

	var session server.SessionResponse
	getJSON(t, f, server.RouteAPISession, &session)
	require.False(t, session.Session.IsAuthenticated)
	require.Equal(t, server.RouteLogin, session.Route)

	var cfg server.ConfigResponse
	getJSON(t, f, server.RouteAPIConfig, &cfg)
	require.Equal(t, "Test Agent", cfg.AppName)
	require.False(t, cfg.SSOEnabled)
	require.Equal(t, int64(25<<20), cfg.MaxUploadBytes)
}

func TestReturningClientIsRestoredFromLoginSession(t *testing.T) {
	f := setupTestFixture(t)
	f.signUpAndVerify(t)

	// Drop every live instance; the held tokens bring the client back signed in.
	f.server.Close()

	resp, _ := f.get(t, server.RouteChat)
	require.Equal(t, server.RouteChat, resp.Request.URL.Path)
}

func TestMetricsAndStaticFiles(t *testing.T) {
	f := setupTestFixture(t)
	f.get(t, server.RouteLogin)

	resp, body := f.get(t, "/css/app.css")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/css")
	require.NotEmpty(t, body)

	resp, _ = f.get(t, "/js/missing.js")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, body = f.get(t, server.RouteMetrics)
	require.Contains(t, body, "agentchat_http_requests_total")
	require.Contains(t, body, `route="/login"`)
	require.Contains(t, body, "agentchat_live_clients")
}
