package metricsfx

import (
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/logrotate/pkg/http/handler"
)

func RotationMetricHandler(
	logger *logrus.Logger,
	manager handler.RotationManager,
	repository handler.StateRepository,
) *handler.RotationMetricHandler {
	return handler.NewRotationMetricHandler(logger, manager, repository)
}

func RegisterRotationMetricHandler(router *mux.Router, h *handler.RotationMetricHandler) {
	router.Handle("/metrics/rotations", h).Methods("GET")
}
