// SPDX-License-Identifier: MIT

package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fileRequestsDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifeboat_file_requests_denied_total",
		Help: "Report file requests denied by the secure file server, by reason",
	}, []string{"reason"})

	fileRequestsAllowed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifeboat_file_requests_allowed_total",
		Help: "Report file requests served successfully",
	})
)

func recordFileRequestDenied(reason string) {
	fileRequestsDenied.WithLabelValues(reason).Inc()
}

func recordFileRequestAllowed() {
	fileRequestsAllowed.Inc()
}
