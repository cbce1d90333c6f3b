package localidp_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-agent-chat/identity"
	"github.com/jrsteele09/go-agent-chat/identity/localidp"
	"github.com/jrsteele09/go-agent-chat/token"
	fakeuserrepo "github.com/jrsteele09/go-agent-chat/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	testUsername = "user_0b5c"
	testEmail    = "alice@corp.io"
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

type testFixture struct {
	now      time.Time
	codes    *capturedCodes
	provider *localidp.Provider
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		now:   time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		codes: &capturedCodes{codes: map[string]string{}},
	}
	clock := func() time.Time { return f.now }
	issuer := token.NewIssuer("local", "agent-chat", token.NewHMACSigner("test-secret"), token.WithNowTime(clock))
	f.provider = localidp.New(
		fakeuserrepo.NewFakeUserRepo(),
		issuer,
		token.NewInMemoryRevokedTokenCache(),
		localidp.WithCodeSender(f.codes),
		localidp.WithNowTime(clock),
		localidp.WithCodeGenerator(func() (string, error) { return testCode, nil }),
	)
	return f
}

func (f *testFixture) signUp(t *testing.T) {
	t.Helper()
	res, err := f.provider.SignUp(context.Background(), testUsername, testPassword, identity.Attributes{Email: testEmail, Name: "Alice"})
	require.NoError(t, err)
	require.True(t, res.ConfirmationRequired)
	require.NotEmpty(t, res.UserID)
}

func (f *testFixture) confirmedUser(t *testing.T) {
	t.Helper()
	f.signUp(t)
	require.NoError(t, f.provider.ConfirmSignUp(context.Background(), testUsername, testCode))
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("sends code", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signUp(t)
		require.Equal(t, testCode, f.codes.codes[testEmail])
	})

	tests := []struct {
		name     string
		username string
		password string
		email    string
		kind     identity.ErrorKind
	}{
		{name: "weak password", username: "user_1", password: "password", email: "bob@corp.io", kind: identity.KindWeakPassword},
		{name: "invalid email", username: "user_1", password: testPassword, email: "not-an-email", kind: identity.KindInvalidAttributes},
		{name: "email as username", username: "bob@corp.io", password: testPassword, email: "bob@corp.io", kind: identity.KindInvalidAttributes},
		{name: "username taken", username: testUsername, password: testPassword, email: "bob@corp.io", kind: identity.KindUsernameTaken},
		{name: "email of confirmed account", username: "user_2", password: testPassword, email: "ALICE@corp.io", kind: identity.KindUsernameTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			f.confirmedUser(t)

			_, err := f.provider.SignUp(ctx, tt.username, tt.password, identity.Attributes{Email: tt.email})
			require.Error(t, err)
			require.Equal(t, tt.kind, identity.KindOf(err))
		})
	}
}

func TestSignUp_UnconfirmedAccountIsReplaced(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.signUp(t)

	_, err := f.provider.SignUp(ctx, "user_2", testPassword, identity.Attributes{Email: testEmail})
	require.NoError(t, err)

	err = f.provider.ConfirmSignUp(ctx, testUsername, testCode)
	require.Equal(t, identity.KindUserNotFound, identity.KindOf(err))

	require.NoError(t, f.provider.ConfirmSignUp(ctx, "user_2", testCode))
	tokens, err := f.provider.InitiateAuth(ctx, testEmail, testPassword)
	require.NoError(t, err)
	require.NotEmpty(t, tokens.AccessToken)
}

func TestConfirmSignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong code", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signUp(t)
		err := f.provider.ConfirmSignUp(ctx, testUsername, "000000")
		require.Equal(t, identity.KindCodeMismatch, identity.KindOf(err))
	})

	t.Run("expired code", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signUp(t)
		f.now = f.now.Add(localidp.DefaultCodeExpiry + time.Minute)
		err := f.provider.ConfirmSignUp(ctx, testUsername, testCode)
		require.Equal(t, identity.KindCodeExpired, identity.KindOf(err))
	})

	t.Run("unknown user", func(t *testing.T) {
		f := setupTestFixture(t)
		err := f.provider.ConfirmSignUp(ctx, "user_missing", testCode)
		require.Equal(t, identity.KindUserNotFound, identity.KindOf(err))
	})

	t.Run("already confirmed", func(t *testing.T) {
		f := setupTestFixture(t)
		f.confirmedUser(t)
		err := f.provider.ConfirmSignUp(ctx, testUsername, testCode)
		require.Equal(t, identity.KindNotAuthorized, identity.KindOf(err))
	})
}

func TestInitiateAuth(t *testing.T) {
	ctx := context.Background()

	t.Run("unconfirmed user", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signUp(t)
		_, err := f.provider.InitiateAuth(ctx, testUsername, testPassword)
		require.Equal(t, identity.KindUserUnconfirmed, identity.KindOf(err))
	})

	t.Run("unconfirmed user cannot use email alias", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signUp(t)
		_, err := f.provider.InitiateAuth(ctx, testEmail, testPassword)
		require.Equal(t, identity.KindUserNotFound, identity.KindOf(err))
	})

	t.Run("bad password", func(t *testing.T) {
		f := setupTestFixture(t)
		f.confirmedUser(t)
		_, err := f.provider.InitiateAuth(ctx, testEmail, "Wr0ngPassword")
		require.Equal(t, identity.KindNotAuthorized, identity.KindOf(err))
	})

	t.Run("unknown user", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.provider.InitiateAuth(ctx, "nobody@corp.io", testPassword)
		require.Equal(t, identity.KindUserNotFound, identity.KindOf(err))
	})

	t.Run("by email then fetch user", func(t *testing.T) {
		f := setupTestFixture(t)
		f.confirmedUser(t)

		tokens, err := f.provider.InitiateAuth(ctx, testEmail, testPassword)
		require.NoError(t, err)
		require.NotEmpty(t, tokens.AccessToken)
		require.NotEmpty(t, tokens.IDToken)
		require.True(t, tokens.Live(f.now))

		current, err := f.provider.GetUser(ctx, tokens)
		require.NoError(t, err)
		require.NotEmpty(t, current.UserID)
		require.Equal(t, testEmail, current.Attributes.Email)
		require.Equal(t, "Alice", current.Attributes.Name)
	})
}

func TestGlobalSignOut(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.confirmedUser(t)

	tokens, err := f.provider.InitiateAuth(ctx, testUsername, testPassword)
	require.NoError(t, err)

	require.NoError(t, f.provider.GlobalSignOut(ctx, tokens))

	_, err = f.provider.GetUser(ctx, tokens)
	require.Equal(t, identity.KindNotAuthorized, identity.KindOf(err))

	_, err = f.provider.GetUser(ctx, &identity.Tokens{})
	require.Equal(t, identity.KindNoSession, identity.KindOf(err))
}
