// Package metrics holds the Prometheus collectors for rooms and matches.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RoomsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tablero_rooms_open",
			Help: "Rooms currently registered",
		},
	)
	RoomsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablero_rooms_created_total",
			Help: "Rooms created, by game",
		},
		[]string{"game"},
	)
	LobbiesAborted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablero_lobbies_aborted_total",
			Help: "Rooms released before a match started, by reason",
		},
		[]string{"reason"},
	)
	MatchesFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablero_matches_finished_total",
			Help: "Finished matches, by game and outcome",
		},
		[]string{"game", "outcome"},
	)
	ActionsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablero_actions_received_total",
			Help: "Inbound participant messages, by type",
		},
		[]string{"type"},
	)
	ParticipantsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tablero_participants_connected",
			Help: "Open participant websocket connections",
		},
	)
)

func init() {
	prometheus.MustRegister(RoomsOpen)
	prometheus.MustRegister(RoomsCreated)
	prometheus.MustRegister(LobbiesAborted)
	prometheus.MustRegister(MatchesFinished)
	prometheus.MustRegister(ActionsReceived)
	prometheus.MustRegister(ParticipantsConnected)
}
