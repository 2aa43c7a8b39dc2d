package storehandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizgamego/internal/services/store"
)

type stubStore struct {
	teacher   *store.Teacher
	authErr   error
	code      string
	quizErr   error
	answerID  string
	answerErr error
	book      *store.Book
	bookErr   error
	books     []store.Book
	booksErr  error
}

func (s *stubStore) AuthenticateTeacher(context.Context, string, string) (*store.Teacher, error) {
	return s.teacher, s.authErr
}
func (s *stubStore) SubmitQuiz(context.Context, store.Quiz) (string, error) {
	return s.code, s.quizErr
}
func (s *stubStore) SubmitAnswer(context.Context, store.Answer) (string, error) {
	return s.answerID, s.answerErr
}
func (s *stubStore) GetBook(context.Context, string) (*store.Book, error) {
	return s.book, s.bookErr
}
func (s *stubStore) ListBooks(context.Context, string) ([]store.Book, error) {
	return s.books, s.booksErr
}
func (s *stubStore) SearchBooks(context.Context, string) ([]store.Book, error) {
	return s.books, s.booksErr
}

func newTestRouter(svc store.IStoreService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewStoreHandler(svc).Register(engine.Group("/api"))
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestLoginGame(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		engine := newTestRouter(&stubStore{
			teacher: &store.Teacher{ID: 7, Username: "guru", Name: "Bu Guru"},
		})

		rec := doJSON(t, engine, http.MethodPost, "/api/login-game",
			map[string]string{"username": "guru", "password": "rahasia"})

		require.Equal(t, http.StatusOK, rec.Code)
		var teacher store.Teacher
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &teacher))
		assert.Equal(t, 7, teacher.ID)
	})

	t.Run("bad credentials", func(t *testing.T) {
		engine := newTestRouter(&stubStore{authErr: store.ErrInvalidCredentials})

		rec := doJSON(t, engine, http.MethodPost, "/api/login-game",
			map[string]string{"username": "guru", "password": "salah"})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		engine := newTestRouter(&stubStore{})

		rec := doJSON(t, engine, http.MethodPost, "/api/login-game",
			map[string]string{"username": "guru"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSubmitQuizEndpoint(t *testing.T) {
	engine := newTestRouter(&stubStore{code: "QZ12AB34"})

	rec := doJSON(t, engine, http.MethodPost, "/api/submit-soal", SubmitQuizRequest{
		Data: store.Quiz{
			IDLobby:   "ROOM01",
			Questions: []store.Question{{Question: "?", Type: "essay", Timer: 30}},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var res SubmitQuizResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "QZ12AB34", res.Code)
}

func TestSubmitQuizRejectsEmptyQuestionSet(t *testing.T) {
	engine := newTestRouter(&stubStore{code: "X"})

	rec := doJSON(t, engine, http.MethodPost, "/api/submit-soal",
		SubmitQuizRequest{Data: store.Quiz{IDLobby: "ROOM01"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitAnswerEndpoint(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		engine := newTestRouter(&stubStore{answerID: "ANS1"})

		rec := doJSON(t, engine, http.MethodPost, "/api/submit-jawaban",
			SubmitAnswerRequest{Data: store.Answer{KodeSoal: "QZ1", NamaSiswa: "Andi"}})

		require.Equal(t, http.StatusOK, rec.Code)
		var res SubmitAnswerResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "ANS1", res.ID)
	})

	t.Run("unknown quiz", func(t *testing.T) {
		engine := newTestRouter(&stubStore{answerErr: store.ErrQuizNotFound})

		rec := doJSON(t, engine, http.MethodPost, "/api/submit-jawaban",
			SubmitAnswerRequest{Data: store.Answer{KodeSoal: "NOPE"}})

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestBookEndpoints(t *testing.T) {
	t.Run("download", func(t *testing.T) {
		engine := newTestRouter(&stubStore{
			book: &store.Book{ID: "9", Title: "A", DownloadURL: "https://files.example.com/9.pdf"},
		})

		rec := doJSON(t, engine, http.MethodGet, "/api/download-buku/9", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var res DownloadBookResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "https://files.example.com/9.pdf", res.DownloadURL)
	})

	t.Run("download missing", func(t *testing.T) {
		engine := newTestRouter(&stubStore{bookErr: store.ErrBookNotFound})

		rec := doJSON(t, engine, http.MethodGet, "/api/download-buku/404", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("list", func(t *testing.T) {
		engine := newTestRouter(&stubStore{
			books: []store.Book{{ID: "1", Title: "A", DownloadURL: "u"}},
		})

		rec := doJSON(t, engine, http.MethodGet, "/api/list-buku/all", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var books []store.Book
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &books))
		assert.Len(t, books, 1)
	})

	t.Run("search", func(t *testing.T) {
		engine := newTestRouter(&stubStore{
			books: []store.Book{{ID: "3", Title: "Aljabar Dasar", DownloadURL: "u"}},
		})

		rec := doJSON(t, engine, http.MethodGet, "/api/search-buku/aljabar", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var books []store.Book
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &books))
		require.Len(t, books, 1)
		assert.Equal(t, "Aljabar Dasar", books[0].Title)
	})
}
