package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	questionsAskedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guesswho_questions_asked_total",
		Help: "Total number of committed question moves.",
	})

	guessesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guesswho_guesses_total",
			Help: "Total number of committed guesses by outcome.",
		},
		[]string{"outcome"},
	)

	gamesAbandonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guesswho_games_abandoned_total",
		Help: "Total number of abandoned games.",
	})

	gamesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guesswho_games_created_total",
		Help: "Total number of created games.",
	})
)
