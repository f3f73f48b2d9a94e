package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	roomsOpen     prometheus.Gauge
	connections   prometheus.Gauge
	actions       *prometheus.CounterVec
	gamesFinished *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		roomsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mindhall_rooms_open",
			Help: "Rooms currently held by the coordinator.",
		}),
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mindhall_connections_attached",
			Help: "WebSocket connections currently attached to a room slot.",
		}),
		actions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mindhall_actions_total",
			Help: "Game actions processed, by action and outcome.",
		}, []string{"action", "outcome"}),
		gamesFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mindhall_games_finished_total",
			Help: "Games reaching a terminal state, by result.",
		}, []string{"result"}),
	}
}

func (m *metrics) action(name string, err error) {
	outcome := "accepted"
	if err != nil {
		outcome = errorCode(err)
	}
	m.actions.WithLabelValues(name, outcome).Inc()
}
