// Package store is the backing record store for teachers, quizzes, answers
// and the book catalog. The realtime core never imports this directly; it
// reaches the store through the /api surface.
package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrQuizNotFound       = errors.New("quiz not found")
	ErrBookNotFound       = errors.New("book not found")
)

// Teacher is a store account row, password hash excluded.
type Teacher struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
}

// Question mirrors the wire question format.
type Question struct {
	Question      string   `json:"question"`
	Type          string   `json:"type"`
	Timer         int      `json:"timer"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer int      `json:"correctAnswer,omitempty"` // 1-based
}

// Quiz is a question-set submission.
type Quiz struct {
	ServerID  int        `json:"serverID"`
	NamaGuru  string     `json:"namaGuru"`
	IDLobby   string     `json:"idLobby"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// AnswerItem is one answered question as submitted.
type AnswerItem struct {
	SelectedAnswer *int   `json:"selectedAnswer,omitempty"`
	EssayAnswer    string `json:"essayAnswer,omitempty"`
}

// Answer is a student's submission for one quiz.
type Answer struct {
	KodeSoal  string       `json:"kodeSoal"`
	NamaSiswa string       `json:"namaSiswa"`
	IDLobby   string       `json:"idLobby"`
	Jawaban   []AnswerItem `json:"jawaban"`
}

// gradedAnswer is what gets persisted: the submission enriched with
// correctness against the stored questions.
type gradedAnswer struct {
	SelectedAnswer *int   `json:"selectedAnswer,omitempty"`
	EssayAnswer    string `json:"essayAnswer,omitempty"`
	IsCorrect      bool   `json:"isCorrect"`
	QuestionType   string `json:"questionType"`
	CorrectAnswer  int    `json:"correctAnswer,omitempty"`
	SelectedOption string `json:"selectedOption,omitempty"`
}

// Book is one catalog entry.
type Book struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Category    string `json:"category,omitempty"`
	Grade       string `json:"grade,omitempty"`
	Description string `json:"description,omitempty"`
	DownloadURL string `json:"downloadUrl"`
}

const unansweredEssay = "Siswa Tidak Menjawab"

type IStoreService interface {
	AuthenticateTeacher(ctx context.Context, username, password string) (*Teacher, error)
	SubmitQuiz(ctx context.Context, quiz Quiz) (code string, err error)
	SubmitAnswer(ctx context.Context, answer Answer) (id string, err error)
	GetBook(ctx context.Context, id string) (*Book, error)
	ListBooks(ctx context.Context, category string) ([]Book, error)
	SearchBooks(ctx context.Context, term string) ([]Book, error)
}

type storeService struct {
	db *sql.DB
}

func NewStoreService(db *sql.DB) IStoreService {
	return &storeService{db: db}
}

func (svc *storeService) AuthenticateTeacher(ctx context.Context, username, password string) (*Teacher, error) {
	const q = `SELECT id, username, name, coalesce(email,''), password
	             FROM teachers WHERE username = $1`
	var (
		t    Teacher
		hash string
	)
	err := svc.db.QueryRowContext(ctx, q, username).
		Scan(&t.ID, &t.Username, &t.Name, &t.Email, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &t, nil
}

func (svc *storeService) SubmitQuiz(ctx context.Context, quiz Quiz) (string, error) {
	code := newCode(8)
	questions, err := json.Marshal(quiz.Questions)
	if err != nil {
		return "", err
	}

	title := quiz.Title
	if title == "" {
		title = "Quiz"
	}
	const ins = `INSERT INTO quizzes (id, teacher_id, teacher_name, lobby_id, title, questions, status)
	             VALUES ($1, $2, $3, $4, $5, $6, 'active')`
	_, err = svc.db.ExecContext(ctx, ins,
		code, quiz.ServerID, quiz.NamaGuru, quiz.IDLobby, title, string(questions))
	if err != nil {
		return "", fmt.Errorf("insert quiz: %w", err)
	}
	return code, nil
}

func (svc *storeService) SubmitAnswer(ctx context.Context, answer Answer) (string, error) {
	var rawQuestions string
	err := svc.db.QueryRowContext(ctx,
		`SELECT questions FROM quizzes WHERE id = $1`, answer.KodeSoal).
		Scan(&rawQuestions)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrQuizNotFound
	}
	if err != nil {
		return "", err
	}

	var questions []Question
	if err := json.Unmarshal([]byte(rawQuestions), &questions); err != nil {
		return "", fmt.Errorf("stored questions corrupt: %w", err)
	}
	if len(questions) == 0 {
		return "", ErrQuizNotFound
	}

	graded, correct := grade(questions, answer.Jawaban)
	score := int(math.Round(float64(correct) / float64(len(questions)) * 100))

	payload, err := json.Marshal(graded)
	if err != nil {
		return "", err
	}

	id := newCode(8)
	const ins = `INSERT INTO answers (id, quiz_id, student_name, lobby_id, answers, score)
	             VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = svc.db.ExecContext(ctx, ins,
		id, answer.KodeSoal, answer.NamaSiswa, answer.IDLobby, string(payload), score)
	if err != nil {
		return "", fmt.Errorf("insert answer: %w", err)
	}
	return id, nil
}

// grade marks each submitted item against the question at the same index.
// Multiple choice compares the 1-based selection; essays count as correct
// when actually answered, pending manual grading.
func grade(questions []Question, items []AnswerItem) ([]gradedAnswer, int) {
	graded := make([]gradedAnswer, 0, len(items))
	correct := 0
	for i, item := range items {
		g := gradedAnswer{
			SelectedAnswer: item.SelectedAnswer,
			EssayAnswer:    item.EssayAnswer,
			QuestionType:   "unknown",
		}
		if i < len(questions) {
			q := questions[i]
			switch {
			case q.Type == "pilgan" && item.SelectedAnswer != nil:
				sel := *item.SelectedAnswer
				g.QuestionType = "pilgan"
				g.CorrectAnswer = q.CorrectAnswer
				g.IsCorrect = sel == q.CorrectAnswer
				if sel >= 1 && sel <= len(q.Options) {
					g.SelectedOption = q.Options[sel-1]
				}
			case q.Type == "essay":
				g.QuestionType = "essay"
				g.IsCorrect = item.EssayAnswer != "" && item.EssayAnswer != unansweredEssay
			}
		}
		if g.IsCorrect {
			correct++
		}
		graded = append(graded, g)
	}
	return graded, correct
}

func (svc *storeService) GetBook(ctx context.Context, id string) (*Book, error) {
	const q = bookColumns + ` WHERE id = $1`
	row := svc.db.QueryRowContext(ctx, q, id)
	b := &Book{}
	if err := scanBook(row, b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return b, nil
}

func (svc *storeService) ListBooks(ctx context.Context, category string) ([]Book, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if category == "" || category == "all" {
		rows, err = svc.db.QueryContext(ctx, bookColumns+` ORDER BY uploaded_at DESC`)
	} else {
		rows, err = svc.db.QueryContext(ctx,
			bookColumns+` WHERE category = $1 ORDER BY uploaded_at DESC`, category)
	}
	if err != nil {
		return nil, err
	}
	return collectBooks(rows)
}

func (svc *storeService) SearchBooks(ctx context.Context, term string) ([]Book, error) {
	pattern := "%" + term + "%"
	const q = bookColumns + `
	    WHERE title ILIKE $1 OR author ILIKE $1 OR subject ILIKE $1
	       OR description ILIKE $1 OR category ILIKE $1
	    ORDER BY uploaded_at DESC`
	rows, err := svc.db.QueryContext(ctx, q, pattern)
	if err != nil {
		return nil, err
	}
	return collectBooks(rows)
}

const bookColumns = `SELECT id, title, coalesce(author,''), coalesce(subject,''),
	coalesce(category,''), coalesce(grade,''), coalesce(description,''), download_url
	FROM books`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner, b *Book) error {
	return row.Scan(&b.ID, &b.Title, &b.Author, &b.Subject,
		&b.Category, &b.Grade, &b.Description, &b.DownloadURL)
}

func collectBooks(rows *sql.Rows) ([]Book, error) {
	defer rows.Close()
	books := make([]Book, 0, 16)
	for rows.Next() {
		var b Book
		if err := scanBook(rows, &b); err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// codes share the quiz-code alphabet clients type in by hand, so 0/O style
// ambiguity is tolerated for compatibility with the existing data.
const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

func newCode(n int) string {
	max := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, n)
	for i := range b {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = codeAlphabet[v.Int64()]
	}
	return string(b)
}
