package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_sends_total",
		Help: "Question/answer exchanges by result (ok, error, rejected).",
	}, []string{"result"})

	persistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_persist_failures_total",
		Help: "Session store writes that failed and were absorbed.",
	})

	feedbackPrompts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_feedback_prompts_total",
		Help: "Feedback prompts shown to users.",
	})

	feedbackSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_feedback_submissions_total",
		Help: "Accepted feedback submissions by verdict.",
	}, []string{"satisfied"})
)
