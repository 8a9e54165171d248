// Copyright 2025 Analyst Assist Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kishanraj41/analyst-assist/internal/analyst"
	"github.com/kishanraj41/analyst-assist/internal/config"
	"github.com/kishanraj41/analyst-assist/internal/feedback"
	"github.com/kishanraj41/analyst-assist/internal/health"
	"github.com/kishanraj41/analyst-assist/internal/resilience"
)

// Analyst is the orchestrator surface the handlers depend on.
type Analyst interface {
	AnswerQuestion(ctx context.Context, userID, question string) (*analyst.Response, error)
	AnalyzeCSV(ctx context.Context, userID string, file io.Reader) (*analyst.Response, error)
}

// QueryRequest is the analyst-query request body.
type QueryRequest struct {
	UserID   string `json:"userId"`
	Question string `json:"question"`
}

// FeedbackRequest is the feedback request body.
type FeedbackRequest struct {
	UserID   string `json:"userId"`
	Query    string `json:"query"`
	Feedback string `json:"feedback"`
}

// Server wires the HTTP routes to the orchestrator and supporting services.
type Server struct {
	config        *config.Config
	logger        *zap.Logger
	analyst       Analyst
	feedback      *feedback.Logger
	healthManager *health.Manager
}

// NewServer creates the HTTP server glue.
func NewServer(cfg *config.Config, logger *zap.Logger, orchestrator Analyst, feedbackLogger *feedback.Logger, healthManager *health.Manager) *Server {
	return &Server{
		config:        cfg,
		logger:        logger,
		analyst:       orchestrator,
		feedback:      feedbackLogger,
		healthManager: healthManager,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Browser client assets
	router.Static("/public", "./public")
	router.StaticFile("/", "./public/index.html")

	router.POST("/analyst-query", s.handleAnalystQuery)
	router.POST("/analyze-data", s.handleAnalyzeData)
	router.POST("/feedback", s.handleFeedback)
	router.GET("/health", s.handleHealth)

	return router
}

// corsMiddleware allows the browser client to call the API cross-origin.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// handleAnalystQuery processes a free-text analyst question.
func (s *Server) handleAnalystQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId and question are required"})
		return
	}

	resp, err := s.analyst.AnswerQuestion(c.Request.Context(), req.UserID, req.Question)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// handleAnalyzeData processes an uploaded CSV. The upload is staged to a temp
// file that is always removed when the request finishes; a failed removal is
// logged and otherwise ignored.
func (s *Server) handleAnalyzeData(c *gin.Context) {
	userID := c.PostForm("userId")
	fileHeader, err := c.FormFile("file")
	if userID == "" || err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId and file are required"})
		return
	}

	uploadPath := filepath.Join(s.config.Server.UploadDir,
		fmt.Sprintf("upload_%d_%s", time.Now().UnixNano(), filepath.Base(fileHeader.Filename)))

	if err := c.SaveUploadedFile(fileHeader, uploadPath); err != nil {
		s.logger.Error("Failed to stage uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process uploaded file"})
		return
	}
	defer func() {
		if err := os.Remove(uploadPath); err != nil {
			s.logger.Error("Failed to delete uploaded file",
				zap.String("path", uploadPath), zap.Error(err))
		}
	}()

	file, err := os.Open(uploadPath)
	if err != nil {
		s.logger.Error("Failed to open uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process uploaded file"})
		return
	}
	defer func() { _ = file.Close() }()

	resp, err := s.analyst.AnalyzeCSV(c.Request.Context(), userID, file)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// handleFeedback records user feedback on a response.
func (s *Server) handleFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid feedback payload"})
		return
	}
	if req.UserID == "" || req.Query == "" || req.Feedback == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId, query, and feedback are required"})
		return
	}

	if err := s.feedback.Log(req.UserID, req.Query, req.Feedback); err != nil {
		s.logger.Error("Failed to record feedback", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record feedback"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Feedback recorded"})
}

// handleHealth reports service health.
func (s *Server) handleHealth(c *gin.Context) {
	result := s.healthManager.Check(c.Request.Context())

	statusCode := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, result)
}

// respondError maps a service error onto its HTTP status with the standard
// error body.
func (s *Server) respondError(c *gin.Context, err error) {
	status := resilience.StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
	} else {
		s.logger.Warn("Request rejected", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
