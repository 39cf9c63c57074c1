package statspush

import (
	"github.com/prometheus/client_golang/prometheus"
	memberdomain "github.com/smallbiznis/metalid/internal/member/domain"
)

// Gauges mirror the admin dashboard counters on a private registry so the
// pushed payload never includes process or HTTP metrics.
type Gauges struct {
	registry *prometheus.Registry
	members  *prometheus.GaugeVec
}

func NewGauges() *Gauges {
	registry := prometheus.NewRegistry()
	members := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "metalid_members",
		Help: "Registered members by status.",
	}, []string{"status"})
	registry.MustRegister(members)
	return &Gauges{registry: registry, members: members}
}

func (g *Gauges) Registry() *prometheus.Registry {
	return g.registry
}

func (g *Gauges) Set(stats memberdomain.Stats) {
	g.members.WithLabelValues("total").Set(float64(stats.Total))
	g.members.WithLabelValues(string(memberdomain.StatusActive)).Set(float64(stats.Active))
	g.members.WithLabelValues(string(memberdomain.StatusPending)).Set(float64(stats.Pending))
}
