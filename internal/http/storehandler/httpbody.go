package storehandler

import "quizgamego/internal/services/store"

type ErrorResponse struct {
	Error string `json:"error"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type SubmitQuizRequest struct {
	Data store.Quiz `json:"data" binding:"required"`
}

type SubmitQuizResponse struct {
	Code string `json:"code"`
}

type SubmitAnswerRequest struct {
	Data store.Answer `json:"data" binding:"required"`
}

type SubmitAnswerResponse struct {
	ID string `json:"id"`
}

type DownloadBookResponse struct {
	DownloadURL string `json:"downloadUrl"`
}
