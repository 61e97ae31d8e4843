package credits

import "github.com/prometheus/client_golang/prometheus"

var (
	staleResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credits_stale_responses_total",
			Help: "Responses discarded because a newer request superseded them",
		},
		[]string{"view"},
	)
	grantOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credits_grant_outcomes_total",
			Help: "Credit grant submissions by outcome",
		},
		[]string{"outcome"},
	)
	lookupQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credits_lookup_queries_total",
			Help: "User lookup queries by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(staleResponses)
	prometheus.MustRegister(grantOutcomes)
	prometheus.MustRegister(lookupQueries)
}
