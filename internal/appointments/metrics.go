package appointments

import "github.com/prometheus/client_golang/prometheus"

var queriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "ponto_appointment_queries_total",
	Help: "Attendance queries by result.",
}, []string{"result"})

func init() {
	prometheus.MustRegister(queriesTotal)
}
