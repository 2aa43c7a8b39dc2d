package storehandler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"quizgamego/internal/services/store"
)

type StoreHandler struct {
	storeService store.IStoreService
}

func NewStoreHandler(storeService store.IStoreService) *StoreHandler {
	return &StoreHandler{storeService: storeService}
}

// Register mounts the store API under the given group.
func (h *StoreHandler) Register(r *gin.RouterGroup) {
	r.POST("/login-game", h.LoginGame)
	r.POST("/submit-soal", h.SubmitQuiz)
	r.POST("/submit-jawaban", h.SubmitAnswer)
	r.GET("/download-buku/:id", h.DownloadBook)
	r.GET("/list-buku/:category", h.ListBooks)
	r.GET("/search-buku/:term", h.SearchBooks)
}

// LoginGame checks teacher credentials and returns the account identity.
func (h *StoreHandler) LoginGame(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username and password are required"})
		return
	}

	teacher, err := h.storeService.AuthenticateTeacher(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid username or password"})
			return
		}
		zap.L().Error("login-game", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, teacher)
}

// SubmitQuiz stores a question set and returns its join code.
func (h *StoreHandler) SubmitQuiz(c *gin.Context) {
	var req SubmitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Data.Questions) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "quiz data is required"})
		return
	}

	code, err := h.storeService.SubmitQuiz(c.Request.Context(), req.Data)
	if err != nil {
		zap.L().Error("submit-soal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, SubmitQuizResponse{Code: code})
}

// SubmitAnswer grades and stores one student submission.
func (h *StoreHandler) SubmitAnswer(c *gin.Context) {
	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Data.KodeSoal == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "answer data is required"})
		return
	}

	id, err := h.storeService.SubmitAnswer(c.Request.Context(), req.Data)
	if err != nil {
		if errors.Is(err, store.ErrQuizNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "quiz not found"})
			return
		}
		zap.L().Error("submit-jawaban", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, SubmitAnswerResponse{ID: id})
}

// DownloadBook resolves a book ID to its download location.
func (h *StoreHandler) DownloadBook(c *gin.Context) {
	book, err := h.storeService.GetBook(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "book not found"})
			return
		}
		zap.L().Error("download-buku", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, DownloadBookResponse{DownloadURL: book.DownloadURL})
}

// ListBooks returns the catalog, optionally filtered by category. The
// category "all" means no filter.
func (h *StoreHandler) ListBooks(c *gin.Context) {
	books, err := h.storeService.ListBooks(c.Request.Context(), c.Param("category"))
	if err != nil {
		zap.L().Error("list-buku", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, books)
}

// SearchBooks matches the term against title, author, subject, description
// and category.
func (h *StoreHandler) SearchBooks(c *gin.Context) {
	books, err := h.storeService.SearchBooks(c.Request.Context(), c.Param("term"))
	if err != nil {
		zap.L().Error("search-buku", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, books)
}
