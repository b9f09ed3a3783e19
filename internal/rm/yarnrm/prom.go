package yarnrm

import (
	prom "github.com/prometheus/client_golang/prometheus"
)

const (
	promNamespace = "am"
	promSubsystem = "container_manager"
)

var (
	containerManagerLabels = []string{"application_id"}

	executorExpiredCounter = prom.NewCounterVec(prom.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "executor_expired",
		Help:      "containers released because their executor expired",
	}, containerManagerLabels)

	releaseContainerCounter = prom.NewCounterVec(prom.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "release_container",
		Help:      "containers fully released through the schedule chain",
	}, containerManagerLabels)
)

func init() {
	prom.MustRegister(executorExpiredCounter)
	prom.MustRegister(releaseContainerCounter)
}
