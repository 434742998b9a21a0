package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/logrotate/pkg/appcontext"
	"github.com/yurykabanov/logrotate/pkg/domain"
)

type StateRepository interface {
	All(context.Context) ([]domain.RotationState, error)
}

type RotationManager interface {
	Rules() []domain.Rule
	LastSummary() (domain.Summary, bool)
}

type RotationMetricHandler struct {
	logger  logrus.FieldLogger
	manager RotationManager
	repo    StateRepository
}

func NewRotationMetricHandler(logger logrus.FieldLogger, manager RotationManager, repo StateRepository) *RotationMetricHandler {
	return &RotationMetricHandler{
		logger:  logger,
		manager: manager,
		repo:    repo,
	}
}

type fileRotationResponse struct {
	Path          string `json:"path"`
	LastRotatedAt int64  `json:"last_rotated_at_mtime"`
}

type rotationMetricResponse struct {
	RuleName   string                 `json:"rule_name"`
	TargetPath string                 `json:"target_path"`
	LastCycle  string                 `json:"last_cycle_id,omitempty"`
	LastStatus string                 `json:"last_status,omitempty"`
	LastErrors []string               `json:"last_errors,omitempty"`
	Files      []fileRotationResponse `json:"files"`
}

func (h *RotationMetricHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	logger := appcontext.LoggerFromContext(h.logger, ctx)

	states, err := h.repo.All(ctx)
	if err != nil {
		logger.WithError(err).Error("Unable to query rotation states")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	summary, hasSummary := h.manager.LastSummary()

	outcomes := make(map[string]domain.TargetOutcome)
	for _, t := range summary.Targets {
		outcomes[t.Rule] = t
	}

	result := make([]rotationMetricResponse, 0, len(h.manager.Rules()))

	for _, rule := range h.manager.Rules() {
		item := rotationMetricResponse{
			RuleName:   rule.Name,
			TargetPath: rule.TargetPath,
			Files:      []fileRotationResponse{},
		}

		if hasSummary {
			item.LastCycle = summary.CycleId
		}

		if outcome, ok := outcomes[rule.Name]; ok {
			item.LastStatus = string(outcome.Status)
			for _, err := range outcome.Errors {
				item.LastErrors = append(item.LastErrors, err.Error())
			}
		}

		for _, s := range states {
			if rule.Matches(s.TargetPath) {
				item.Files = append(item.Files, fileRotationResponse{
					Path:          s.TargetPath,
					LastRotatedAt: s.LastRotatedAt.UnixNano() / 1e6,
				})
			}
		}

		result = append(result, item)
	}

	w.Header().Set("Content-Type", "application/json")

	enc := json.NewEncoder(w)
	err = enc.Encode(result)
	if err != nil {
		logger.WithError(err).Error("Unable to encode response")
	}
}
