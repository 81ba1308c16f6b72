/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/config"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/dialect"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/generator"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/seeder"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Generator is the part of seeder.Service the server needs.
type Generator interface {
	GenerateInsertSQLs(ctx context.Context, req seeder.Request) (*seeder.Result, error)
	Target() dialect.DatabaseType
}

type Server struct {
	svc    Generator
	cfg    config.ServerConfig
	logger *zap.Logger
}

func New(svc Generator, cfg config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{svc: svc, cfg: cfg, logger: logger}
}

// HTTPServer wraps the router in an http.Server with the configured
// timeouts.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Router(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger(), cors.New(s.corsConfig()))

	router.GET("/healthz", func(c *gin.Context) {
		Success(c, http.StatusOK, gin.H{"status": "ok"}, "")
	})

	v1 := router.Group("/v1")
	v1.GET("/dialects", s.listDialects)
	v1.POST("/generate", s.generate)
	return router
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	for _, origin := range s.cfg.AllowedOrigins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(s.cfg.AllowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = s.cfg.AllowedOrigins
	return cfg
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (s *Server) listDialects(c *gin.Context) {
	Success(c, http.StatusOK, gin.H{
		"target":    s.svc.Target(),
		"supported": dialect.SupportedTypes(),
	}, "")
}

type generateRequest struct {
	Query string `json:"query" binding:"required"`
	Rows  int    `json:"rows"`
}

type generateResponse struct {
	Target      dialect.DatabaseType `json:"target"`
	Strategy    string               `json:"strategy"`
	Constraints int                  `json:"constraints"`
	Order       []string             `json:"order"`
	Statements  []seeder.OrderedSQL  `json:"statements"`
}

func (s *Server) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, http.StatusBadRequest, err, "Invalid request body: query is required")
		return
	}
	if req.Rows < 0 || (s.cfg.MaxRows > 0 && req.Rows > s.cfg.MaxRows) {
		Fail(c, http.StatusBadRequest, nil, fmt.Sprintf("rows must be between 0 and %d", s.cfg.MaxRows))
		return
	}

	res, err := s.svc.GenerateInsertSQLs(c.Request.Context(), seeder.Request{SQL: req.Query, Rows: req.Rows})
	if err != nil {
		s.logger.Warn("Generation failed", zap.Error(err))
		Fail(c, statusFor(err), err, "Failed to generate rows")
		return
	}

	resp := generateResponse{
		Target:      s.svc.Target(),
		Strategy:    res.Strategy,
		Constraints: res.Constraints,
		Statements:  res.Statements,
	}
	if res.Rows != nil {
		resp.Order = res.Rows.Order
	}
	Success(c, http.StatusOK, resp, fmt.Sprintf("Generated %d statements", len(res.Statements)))
}

func statusFor(err error) int {
	var (
		invalid   *seeder.ErrInvalidInput
		timeout   *seeder.ErrTimeout
		cancelled *seeder.ErrCancelled
		dbErr     *seeder.ErrDatabaseConnection
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.Is(err, generator.ErrNoTables),
		errors.Is(err, generator.ErrUniqueSpaceExhausted),
		errors.Is(err, generator.ErrMissingParent),
		errors.Is(err, generator.ErrUnsatisfiable),
		errors.Is(err, dialect.ErrUnrepresentable):
		return http.StatusUnprocessableEntity
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &cancelled), errors.As(err, &dbErr):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
