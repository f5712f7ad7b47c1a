package service

import (
	"bytes"
	"coder_assessment_backend/internal/assessment"
	"coder_assessment_backend/internal/config"
	"coder_assessment_backend/pkg/logger"
	"coder_assessment_backend/pkg/monitoring"
	"coder_assessment_backend/pkg/tracing"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// JudgeService 远程判题客户端，实现 assessment.Judge
type JudgeService struct {
	config  config.JudgeConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewJudgeService(cfg config.JudgeConfig) *JudgeService {
	return &JudgeService{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout()},
		limiter: rate.NewLimiter(judgeLimit(cfg), judgeBurst(cfg)),
	}
}

// judgeLimit 未配置速率时不限流
func judgeLimit(cfg config.JudgeConfig) rate.Limit {
	if cfg.RatePerSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(cfg.RatePerSecond)
}

func judgeBurst(cfg config.JudgeConfig) int {
	if cfg.Burst < 1 {
		return 1
	}
	return cfg.Burst
}

// SetRate 配置热更新时调整限流
func (s *JudgeService) SetRate(cfg config.JudgeConfig) {
	s.limiter.SetLimit(judgeLimit(cfg))
	s.limiter.SetBurst(judgeBurst(cfg))
}

type judgeRequest struct {
	Code         string                `json:"code"`
	Language     string                `json:"language"`
	TestCases    []assessment.TestCase `json:"testCases"`
	FunctionName string                `json:"functionName"`
}

type judgeResponse struct {
	Results []assessment.CaseResult `json:"results"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Run 执行一次判题。非 2xx、无法解析或结果数与用例数不一致都视为判题失败
func (s *JudgeService) Run(ctx context.Context, req assessment.RunRequest) ([]assessment.CaseResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "judge.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("judge.language", req.Language),
		attribute.Int("judge.cases", len(req.TestCases)),
	)

	start := time.Now()
	results, err := s.run(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Log.Warn("Judge run failed",
			zap.String("language", req.Language),
			zap.Int("cases", len(req.TestCases)),
			zap.Error(err))
	}
	monitoring.JudgeDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", assessment.ErrJudgeUnavailable, err)
	}
	return results, nil
}

func (s *JudgeService) run(ctx context.Context, req assessment.RunRequest) ([]assessment.CaseResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	language := req.Language
	if language == "" {
		language = s.config.DefaultLanguage
	}

	jsonData, err := json.Marshal(judgeRequest{
		Code:         req.Code,
		Language:     language,
		TestCases:    req.TestCases,
		FunctionName: req.FunctionName,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		httpReq.Header.Set("X-RapidAPI-Key", s.config.APIKey)
	}
	if s.config.Host != "" {
		httpReq.Header.Set("X-RapidAPI-Host", s.config.Host)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("judge API error (status %d): %s", resp.StatusCode, truncate(string(body), 256))
	}

	var out judgeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode judge response: %w", err)
	}
	if out.Error != nil && out.Error.Message != "" {
		return nil, fmt.Errorf("judge error: %s", out.Error.Message)
	}
	if len(out.Results) != len(req.TestCases) {
		return nil, fmt.Errorf("judge returned %d results for %d test cases", len(out.Results), len(req.TestCases))
	}
	return out.Results, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
