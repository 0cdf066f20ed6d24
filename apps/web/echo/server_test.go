package echoweb

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnearn/hub/core"
	"github.com/learnearn/hub/core/earn"
	"github.com/learnearn/hub/core/guard"
	"github.com/learnearn/hub/core/handoff"
	"github.com/learnearn/hub/core/session"
	"github.com/learnearn/hub/services/learnapi"
	logsvc "github.com/learnearn/hub/services/logger"
	"github.com/learnearn/hub/services/spreadsheet"
	"github.com/learnearn/hub/services/stkpush"
	"github.com/learnearn/hub/storage/credstore"
	testutil "github.com/learnearn/hub/tests"
)

const formURL = "https://forms.example.com/submit"

type testApp struct {
	app   Server
	api   *testutil.FakeAPI
	creds *credstore.MemoryDB
	sign  *handoff.Signer
}

func setup(t *testing.T) *testApp {
	t.Helper()
	return setupWithTable(t, guard.DefaultTable())
}

func setupWithTable(t *testing.T, table guard.Table) *testApp {
	t.Helper()

	api, baseURL := testutil.NewFakeAPI(t)
	donateSrv := testutil.NewStubServer(t, http.StatusOK)

	conf := &core.Config{TestMode: true, AppName: "Learn & Earn"}
	logger := logsvc.NopLogger{}

	client, err := learnapi.New(learnapi.Options{BaseURL: baseURL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	g, err := guard.New(table, guard.Policy{Login: "/login", UserHome: "/earn", AdminHome: "/admin"})
	require.NoError(t, err)
	sign, err := handoff.NewSigner(conf.AppName, "s3cret", formURL, time.Minute)
	require.NoError(t, err)
	creds := credstore.NewMemoryDB(logger)

	app, err := NewServer("", nil, &Deps{
		Conf:           conf,
		Logger:         logger,
		Credentials:    creds,
		API:            client,
		Guard:          g,
		Validator:      core.NewValidator(),
		Handoff:        sign,
		Donations:      stkpush.New(donateSrv.URL, time.Second),
		DisableReqLogs: true,
		DisableCSRF:    true,
	})
	require.NoError(t, err)
	return &testApp{app: app, api: api, creds: creds, sign: sign}
}

// browser keeps cookies between requests like a real one would.
type browser struct {
	t       *testing.T
	app     Server
	cookies map[string]*http.Cookie
}

func (ta *testApp) browser(t *testing.T) *browser {
	return &browser{t: t, app: ta.app, cookies: map[string]*http.Cookie{}}
}

func (b *browser) send(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.app.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.send(httptest.NewRequest(http.MethodGet, target, nil))
}

func (b *browser) post(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return b.send(req)
}

func (b *browser) login(email string) {
	rec := b.post("/login", url.Values{"email": {email}, "password": {"x"}})
	require.Equal(b.t, http.StatusSeeOther, rec.Code, rec.Body.String())
}

func (b *browser) acceptTerms() {
	rec := b.post("/earn/terms", url.Values{"agree": {"on"}})
	require.Equal(b.t, http.StatusSeeOther, rec.Code)
}

func (b *browser) credential(ta *testApp) (session.Credential, bool) {
	c, ok := b.cookies[scopeCookie]
	require.True(b.t, ok, "no scope cookie")
	cred, found, err := ta.creds.Scope(c.Value).Load(context.Background())
	require.NoError(b.t, err)
	return cred, found
}

func TestHealthz(t *testing.T) {
	ta := setup(t)
	rec := ta.browser(t).get("/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestGuard(t *testing.T) {
	ta := setup(t)

	tests := []struct {
		name     string
		as       string
		path     string
		wantCode int
		wantLoc  string
	}{
		{name: "landing is public", path: "/", wantCode: http.StatusOK},
		{name: "donate is public", path: "/donate", wantCode: http.StatusOK},
		{name: "anon to earn", path: "/earn", wantCode: http.StatusSeeOther, wantLoc: "/login?next=%2Fearn"},
		{name: "anon to admin", path: "/admin/users", wantCode: http.StatusSeeOther, wantLoc: "/login?next=%2Fadmin%2Fusers"},
		{name: "anon to unknown route", path: "/settings", wantCode: http.StatusSeeOther, wantLoc: "/login?next=%2Fsettings"},
		{name: "member forbidden from admin", as: "u@b.com", path: "/admin", wantCode: http.StatusForbidden},
		{name: "member sent away from login", as: "u@b.com", path: "/login", wantCode: http.StatusSeeOther, wantLoc: "/earn"},
		{name: "admin sent away from signup", as: "a@b.com", path: "/signup", wantCode: http.StatusSeeOther, wantLoc: "/admin"},
		{name: "admin allowed into admin", as: "a@b.com", path: "/admin", wantCode: http.StatusOK},
		{name: "signed in unknown route", as: "u@b.com", path: "/settings", wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ta.browser(t)
			if tt.as != "" {
				b.login(tt.as)
			}
			rec := b.get(tt.path)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantLoc != "" {
				assert.Equal(t, tt.wantLoc, rec.Header().Get(echo.HeaderLocation))
			}
		})
	}
}

func TestDefaultTable_RoutesServed(t *testing.T) {
	ta := setup(t)
	served := map[string]bool{}
	for _, r := range ta.app.(*server).app.Routes() {
		if r.Method == http.MethodGet {
			served[r.Path] = true
		}
	}
	for _, rule := range guard.DefaultTable() {
		p := strings.TrimSuffix(rule.Pattern, "/*")
		assert.True(t, served[p], "no page at %s", p)
	}
}

func TestLogin_AdminScenario(t *testing.T) {
	ta := setup(t)
	b := ta.browser(t)

	rec := b.post("/login", url.Values{"email": {"a@b.com"}, "password": {"x"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get(echo.HeaderLocation))

	cred, ok := b.credential(ta)
	require.True(t, ok)
	assert.Equal(t, "abc", cred.Token)
	assert.Equal(t, core.ID("1"), cred.User.ID)
	assert.Equal(t, session.RoleAdmin, cred.User.Role)

	rec = b.get("/admin")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_Next(t *testing.T) {
	ta := setup(t)
	b := ta.browser(t)

	rec := b.post("/login", url.Values{"email": {"a@b.com"}, "password": {"x"}, "next": {"/admin/users"}})
	assert.Equal(t, "/admin/users", rec.Header().Get(echo.HeaderLocation))

	b = ta.browser(t)
	rec = b.post("/login", url.Values{"email": {"a@b.com"}, "password": {"x"}, "next": {"//evil.example.com"}})
	assert.Equal(t, "/admin", rec.Header().Get(echo.HeaderLocation))
}

func TestLogin_Failures(t *testing.T) {
	ta := setup(t)

	tests := []struct {
		name     string
		form     url.Values
		wantCode int
		wantBody string
	}{
		{name: "refused", form: url.Values{"email": {"x@b.com"}, "password": {"x"}}, wantCode: http.StatusUnauthorized, wantBody: "Invalid credentials"},
		{name: "missing email", form: url.Values{"password": {"x"}}, wantCode: http.StatusBadRequest, wantBody: "this field is required"},
		{name: "bad email", form: url.Values{"email": {"nope"}, "password": {"x"}}, wantCode: http.StatusBadRequest, wantBody: "email must be a valid email address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ta.browser(t)
			rec := b.post("/login", tt.form)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			_, ok := b.credential(ta)
			assert.False(t, ok)
		})
	}
}

func TestLogin_FailureClearsCredential(t *testing.T) {
	// a table that lets signed-in users reach the login form
	table := append(guard.Table{{Pattern: "/login", Capability: guard.Public}}, guard.DefaultTable()...)
	ta := setupWithTable(t, table)
	b := ta.browser(t)
	b.login(testutil.AdminEmail)
	_, ok := b.credential(ta)
	require.True(t, ok)

	rec := b.post("/login", url.Values{"email": {testutil.AdminEmail}, "password": {testutil.WrongPassword}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid credentials")

	_, ok = b.credential(ta)
	assert.False(t, ok)
	rec = b.get("/admin")
	assert.Equal(t, "/login?next=%2Fadmin", rec.Header().Get(echo.HeaderLocation))
}

func TestLogout(t *testing.T) {
	ta := setup(t)
	b := ta.browser(t)
	b.login("u@b.com")

	rec := b.post("/logout", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	_, ok := b.credential(ta)
	assert.False(t, ok)

	rec = b.get("/earn")
	assert.Equal(t, "/login?next=%2Fearn", rec.Header().Get(echo.HeaderLocation))
}

func TestRegisterKeepsReferral(t *testing.T) {
	ta := setup(t)
	rec := ta.browser(t).get("/register?ref=42")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/signup?ref=42", rec.Header().Get(echo.HeaderLocation))
}

func TestEarn_TermsGate(t *testing.T) {
	ta := setup(t)
	b := ta.browser(t)
	b.login("u@b.com")

	rec := b.get("/earn")
	assert.Equal(t, "/earn/terms", rec.Header().Get(echo.HeaderLocation))

	rec = b.post("/earn/terms", url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), msgTermsRequired)

	b.acceptTerms()
	rec = b.get("/earn")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Algebra revision")
	assert.Contains(t, body, "120 credits")
	assert.Contains(t, body, "/register?ref=2")
}

func TestEarn_EmptyListing(t *testing.T) {
	ta := setup(t)
	ta.api.Set(func(f *testutil.FakeAPI) { f.Assignments = nil })
	b := ta.browser(t)
	b.login("u@b.com")
	b.acceptTerms()

	rec := b.get("/earn")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No assignments available right now.")
}

func TestEarn_Accept(t *testing.T) {
	t.Run("rejected", func(t *testing.T) {
		ta := setup(t)
		ta.api.Set(func(f *testutil.FakeAPI) { f.AcceptErr = "Already accepted" })
		b := ta.browser(t)
		b.login("u@b.com")
		b.acceptTerms()

		rec := b.post("/earn/assignments/a1/accept", url.Values{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Already accepted")
		assert.Contains(t, rec.Body.String(), "Algebra revision")
		assert.Equal(t, 1, ta.api.Fetches(), "no refetch after a rejected accept")
	})

	t.Run("accepted", func(t *testing.T) {
		ta := setup(t)
		b := ta.browser(t)
		b.login("u@b.com")
		b.acceptTerms()

		rec := b.post("/earn/assignments/a1/accept", url.Values{})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Accepted!")
		assert.Equal(t, 2, ta.api.Fetches())
	})
}

func TestSessionExpired(t *testing.T) {
	ta := setup(t)
	b := ta.browser(t)
	b.login("a@b.com")
	ta.api.Set(func(f *testutil.FakeAPI) { f.Unauthorized = true })

	rec := b.get("/admin/users")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?expired=1", rec.Header().Get(echo.HeaderLocation))
	_, ok := b.credential(ta)
	assert.False(t, ok, "credential cleared before the redirect")

	rec = b.get("/login?expired=1")
	assert.Contains(t, rec.Body.String(), learnapi.MsgSessionExpired)
}

func TestAdmin_Listings(t *testing.T) {
	ta := setup(t)
	ta.api.Set(func(f *testutil.FakeAPI) {
		f.Users = []earn.User{{ID: "9", Name: "Njeri", Email: "njeri@example.com", Role: "user"}}
		f.Payments = []earn.Payment{{ID: "p1", User: &earn.Payee{Name: "Njeri"}, Amount: "500", Status: "paid"}}
	})
	b := ta.browser(t)
	b.login("a@b.com")

	tests := []struct {
		path     string
		wantBody string
	}{
		{path: "/admin/users", wantBody: "njeri@example.com"},
		{path: "/admin/payments", wantBody: "Njeri"},
		{path: "/admin/submissions", wantBody: "No submissions yet."},
		{path: "/admin/assignments", wantBody: "Algebra revision"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := b.get(tt.path)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestAdmin_EmptyUsers(t *testing.T) {
	ta := setup(t)
	b := ta.browser(t)
	b.login("a@b.com")

	rec := b.get("/admin/users")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No users found.")
}

func TestAdmin_VerifyUser(t *testing.T) {
	ta := setup(t)
	ta.api.Set(func(f *testutil.FakeAPI) { f.Users = []earn.User{{ID: "9", Name: "Njeri", Email: "njeri@example.com"}} })
	b := ta.browser(t)
	b.login("a@b.com")

	rec := b.post("/admin/users/9/verify", url.Values{})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "User updated")
}

func TestAdmin_ExportPayments(t *testing.T) {
	ta := setup(t)
	ta.api.Set(func(f *testutil.FakeAPI) {
		f.Payments = []earn.Payment{{ID: "p1", User: &earn.Payee{Name: "Njeri", Email: "njeri@example.com"}, Amount: "500", Date: "2024-05-01", Status: "paid"}}
	})
	b := ta.browser(t)
	b.login("a@b.com")

	rec := b.get("/admin/payments/export.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, spreadsheet.ContentType, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "payments.xlsx")

	rows, err := spreadsheet.ReadPayments(rec.Body)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Njeri", "njeri@example.com", "500", "2024-05-01", "paid"}, rows[0])
}

func TestAdmin_CreateAssignment(t *testing.T) {
	newRequest := func(fields map[string]string) *http.Request {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for k, v := range fields {
			_ = w.WriteField(k, v)
		}
		_ = w.Close()
		req := httptest.NewRequest(http.MethodPost, "/admin/assignments/new", &buf)
		req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
		return req
	}

	t.Run("optional fields absent", func(t *testing.T) {
		ta := setup(t)
		b := ta.browser(t)
		b.login("a@b.com")

		rec := b.send(newRequest(map[string]string{"title": "Essay on rivers", "description": "500 words"}))
		assert.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, msgCreated)
		assert.Contains(t, body, "Essay on rivers")
		assert.Equal(t, map[string]string{"title": "Essay on rivers", "description": "500 words"}, ta.api.CreatedFields())
		assert.Equal(t, 2, ta.api.Fetches())
	})

	t.Run("invalid", func(t *testing.T) {
		ta := setup(t)
		b := ta.browser(t)
		b.login("a@b.com")

		rec := b.send(newRequest(map[string]string{"title": " ", "price": "cheap"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "this field cannot be blank")
		assert.Nil(t, ta.api.CreatedFields())
	})
}

func TestSubmit_Handoff(t *testing.T) {
	ta := setup(t)
	b := ta.browser(t)
	b.login("u@b.com")

	rec := b.post("/submit", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	loc, err := url.Parse(rec.Header().Get(echo.HeaderLocation))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(loc.String(), formURL+"?"))

	claims, err := ta.sign.Verify(loc.Query().Get(handoff.TokenParam))
	require.NoError(t, err)
	assert.Equal(t, "2", claims.Subject)
	assert.Equal(t, "u@b.com", claims.Email)
}

func TestDonate(t *testing.T) {
	ta := setup(t)
	b := ta.browser(t)

	rec := b.post("/donate", url.Values{"phone": {"0712345678"}, "amount": {"100"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), stkpush.MsgSent)

	rec = b.post("/donate", url.Values{"phone": {"12"}, "amount": {"100"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Safaricom")
}
