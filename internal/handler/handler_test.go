package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/pavelanni/examprep/internal/i18n"
	"github.com/pavelanni/examprep/internal/llm"
	"github.com/pavelanni/examprep/internal/model"
	"github.com/pavelanni/examprep/internal/store"
	"github.com/pavelanni/examprep/internal/translation"
)

type fakeCompleter struct {
	mu    sync.Mutex
	calls int
	reply string
	err   error
}

func (f *fakeCompleter) Complete(context.Context, llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.reply, f.err
}

type testServer struct {
	t      *testing.T
	store  *store.Store
	llm    *fakeCompleter
	router http.Handler
	tokens map[model.UserRole]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	require.NoError(t, appI18n.Init("en"))

	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fc := &fakeCompleter{reply: "Netzwerkprüfung"}
	svc := translation.NewService(st, fc, translation.Options{})
	h := New(st, svc, model.ServerConfig{BatchMaxSize: 10})

	r := chi.NewRouter()
	r.Use(appI18n.Middleware())
	h.Routes(r)

	ts := &testServer{t: t, store: st, llm: fc, router: r, tokens: map[model.UserRole]string{}}
	for _, role := range []model.UserRole{model.UserRoleStudent, model.UserRoleTeacher, model.UserRoleAdmin} {
		ts.tokens[role] = ts.createUser(string(role), "password", role)
	}
	return ts
}

func (ts *testServer) createUser(username, password string, role model.UserRole) string {
	ts.t.Helper()
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(ts.t, err)
	id, err := ts.store.CreateUser(ctx, model.User{
		Username:     username,
		DisplayName:  username,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	})
	require.NoError(ts.t, err)
	token, err := ts.store.CreateToken(ctx, id)
	require.NoError(ts.t, err)
	return token
}

func (ts *testServer) insertExam(name, description string) int64 {
	ts.t.Helper()
	id, err := ts.store.InsertExam(context.Background(), model.Exam{Name: name, Description: description})
	require.NoError(ts.t, err)
	return id
}

func (ts *testServer) do(method, path string, role model.UserRole, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token := ts.tokens[role]; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func examPath(id int64, rest string) string {
	return "/api/exams/" + strconv.FormatInt(id, 10) + rest
}

func TestHealthAndLanguages(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/languages", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	langs := decode[map[string]string](t, rec)
	require.Len(t, langs, 13)
	require.Equal(t, "French", langs["fr"])
}

func TestLoginLogout(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser("alice", "s3cret-pass", model.UserRoleStudent)

	rec := ts.do(http.MethodPost, "/api/login", "", map[string]string{"username": "alice", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid username or password", decode[errorResponse](t, rec).Error)

	rec = ts.do(http.MethodPost, "/api/login", "", map[string]string{"username": "alice"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/login", "", map[string]string{"username": "alice", "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[loginResponse](t, rec)
	require.NotEmpty(t, resp.Token)
	require.Equal(t, "alice", resp.User.Username)

	ts.tokens["alice"] = resp.Token
	rec = ts.do(http.MethodGet, "/api/me", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPost, "/api/logout", "alice", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(http.MethodGet, "/api/me", "alice", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	id := ts.insertExam("CCNA", "Networking exam")

	rec := ts.do(http.MethodGet, "/api/exams", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/api/exams", model.UserRoleStudent, map[string]string{"name": "X"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodDelete, examPath(id, "/translations/de"), model.UserRoleTeacher, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodGet, "/api/admin/users", model.UserRoleTeacher, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTranslateEndpoint(t *testing.T) {
	ts := newTestServer(t)
	id := ts.insertExam("CCNA", "Networking exam")

	rec := ts.do(http.MethodPost, examPath(id, "/translations/de"), model.UserRoleStudent, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[model.TranslationRecord](t, rec)
	require.Equal(t, model.TranslationCompleted, got.Status)
	require.Equal(t, "Netzwerkprüfung", got.TranslatedText)

	rec = ts.do(http.MethodPost, examPath(id, "/translations/de"), model.UserRoleStudent, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, ts.llm.calls)

	rec = ts.do(http.MethodGet, examPath(id, "/translations"), model.UserRoleStudent, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]model.TranslationRecord](t, rec), 1)
}

func TestTranslateEndpointErrors(t *testing.T) {
	ts := newTestServer(t)
	id := ts.insertExam("CCNA", "Networking exam")
	empty := ts.insertExam("Empty", "")

	tests := []struct {
		name string
		path string
		want int
	}{
		{"unsupported language", examPath(id, "/translations/xx"), http.StatusBadRequest},
		{"missing exam", examPath(999, "/translations/de"), http.StatusNotFound},
		{"bad exam id", "/api/exams/abc/translations/de", http.StatusNotFound},
		{"no source text", examPath(empty, "/translations/de"), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, tt.path, model.UserRoleStudent, nil)
			require.Equal(t, tt.want, rec.Code, rec.Body.String())
			require.NotEmpty(t, decode[errorResponse](t, rec).Error)
		})
	}
	require.Zero(t, ts.llm.calls)
}

func TestTranslateProviderFailure(t *testing.T) {
	ts := newTestServer(t)
	id := ts.insertExam("CCNA", "Networking exam")
	ts.llm.err = errors.New("upstream timeout")

	rec := ts.do(http.MethodPost, examPath(id, "/translations/fr"), model.UserRoleStudent, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[model.TranslationRecord](t, rec)
	require.Equal(t, model.TranslationError, got.Status)
	require.Contains(t, got.TranslatedText, "translation provider unavailable")
}

func TestLocalizedExamView(t *testing.T) {
	ts := newTestServer(t)
	id := ts.insertExam("CCNA", "Networking exam")

	rec := ts.do(http.MethodGet, examPath(id, "?lang=de"), model.UserRoleStudent, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[examView](t, rec)
	require.False(t, view.Translated)
	require.Equal(t, "Networking exam", view.Description)

	ts.do(http.MethodPost, examPath(id, "/translations/de"), model.UserRoleStudent, nil)

	rec = ts.do(http.MethodGet, "/api/exams?lang=de", model.UserRoleStudent, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	views := decode[[]examView](t, rec)
	require.Len(t, views, 1)
	require.True(t, views[0].Translated)
	require.Equal(t, "Netzwerkprüfung", views[0].Description)
	require.Equal(t, "de", views[0].Language)

	rec = ts.do(http.MethodGet, "/api/exams?lang=xx", model.UserRoleStudent, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManualAndInvalidate(t *testing.T) {
	ts := newTestServer(t)
	id := ts.insertExam("CCNA", "Networking exam")

	rec := ts.do(http.MethodPut, examPath(id, "/translations/it"), model.UserRoleTeacher, map[string]string{"text": "Esame di rete"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[model.TranslationRecord](t, rec)
	require.Equal(t, model.MethodManual, got.Method)

	rec = ts.do(http.MethodPut, examPath(id, "/translations/it"), model.UserRoleTeacher, map[string]string{"text": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodDelete, examPath(id, "/translations/it"), model.UserRoleAdmin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(http.MethodDelete, examPath(id, "/translations/it"), model.UserRoleAdmin, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Zero(t, ts.llm.calls)
}

func TestBatchEndpoint(t *testing.T) {
	ts := newTestServer(t)
	id := ts.insertExam("CCNA", "Networking exam")

	rec := ts.do(http.MethodPost, "/api/translations/batch", model.UserRoleStudent, map[string]any{
		"exam_ids":  []int64{id, 999},
		"languages": []string{"de"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	result := decode[map[string]map[string]json.RawMessage](t, rec)
	require.JSONEq(t, `"not found"`, string(result["999"]["error"]))
	var pair model.TranslationRecord
	require.NoError(t, json.Unmarshal(result[strconv.FormatInt(id, 10)]["de"], &pair))
	require.Equal(t, model.TranslationCompleted, pair.Status)

	rec = ts.do(http.MethodPost, "/api/translations/batch", model.UserRoleStudent, map[string]any{
		"exam_ids":  []int64{},
		"languages": []string{"de"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	ids := make([]int64, 11)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	rec = ts.do(http.MethodPost, "/api/translations/batch", model.UserRoleStudent, map[string]any{
		"exam_ids":  ids,
		"languages": []string{"de"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateExam(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/exams", model.UserRoleTeacher, map[string]string{
		"name":        "AWS SAA",
		"description": "Solutions architect",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	exam := decode[model.Exam](t, rec)
	require.NotZero(t, exam.ID)

	rec = ts.do(http.MethodPost, "/api/exams", model.UserRoleTeacher, map[string]string{"description": "no name"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decode[errorResponse](t, rec).Error, "name")
}

func TestAdminUsers(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/admin/users", model.UserRoleAdmin, map[string]string{
		"username": "bob",
		"password": "longenough",
		"role":     "teacher",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	user := decode[model.User](t, rec)
	require.Equal(t, "bob", user.DisplayName)
	require.NotContains(t, rec.Body.String(), "password")

	rec = ts.do(http.MethodPost, "/api/admin/users", model.UserRoleAdmin, map[string]string{
		"username": "bob",
		"password": "longenough",
		"role":     "teacher",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodPost, "/api/admin/users", model.UserRoleAdmin, map[string]string{
		"username": "carol",
		"password": "longenough",
		"role":     "owner",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/admin/users/"+strconv.FormatInt(user.ID, 10)+"/toggle", model.UserRoleAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, decode[model.User](t, rec).Active)

	rec = ts.do(http.MethodPost, "/api/admin/users/999/toggle", model.UserRoleAdmin, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/admin/users", model.UserRoleAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]model.User](t, rec), 4)
}

func TestUploadExams(t *testing.T) {
	ts := newTestServer(t)

	upload := func() *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("exams_file", "exams.json")
		require.NoError(t, err)
		_, err = fw.Write([]byte(`[{"name":"CCNA","description":"Networking"}]`))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/admin/exams/import", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+ts.tokens[model.UserRoleAdmin])
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)
		return rec
	}

	rec := upload()
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, 1, decode[importResponse](t, rec).Imported)

	rec = upload()
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, decode[importResponse](t, rec).Duplicate)
}

func TestLocalizedErrors(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/exams/999", nil)
	req.Header.Set("Authorization", "Bearer "+ts.tokens[model.UserRoleStudent])
	req.Header.Set("Accept-Language", "ru")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Экзамен не найден", decode[errorResponse](t, rec).Error)
}
