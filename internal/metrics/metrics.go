// Package metrics provides Prometheus instrumentation for the wager engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DiceBetsPlaced counts dice bets accepted, partitioned by token.
	DiceBetsPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_dice_bets_placed_total",
		Help: "Dice bets accepted",
	}, []string{"token"})

	// DiceBetsResolved counts resolutions by outcome (win/lose).
	DiceBetsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_dice_bets_resolved_total",
		Help: "Dice bets resolved by oracle callback",
	}, []string{"outcome"})

	// TicketsSold counts lottery tickets sold, partitioned by token.
	TicketsSold = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_lottery_tickets_sold_total",
		Help: "Lottery tickets sold",
	}, []string{"token"})

	// LotteriesDrawn counts completed lottery draws.
	LotteriesDrawn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wager_lotteries_drawn_total",
		Help: "Lottery draws resolved",
	})

	// RefundsClaimed counts timeout refunds, partitioned by game.
	RefundsClaimed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_refunds_claimed_total",
		Help: "Timeout refunds processed",
	}, []string{"game"})

	// OracleDeliveries counts callback deliveries by result
	// (applied/rejected).
	OracleDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_oracle_deliveries_total",
		Help: "Randomness deliveries received",
	}, []string{"result"})

	// LockedFunds tracks the treasury's locked balance per token.
	LockedFunds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wager_locked_funds",
		Help: "Treasury funds reserved against outstanding payouts",
	}, []string{"token"})

	// AvailableFunds tracks the treasury's withdrawable balance per token.
	AvailableFunds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wager_available_funds",
		Help: "Treasury funds available for payouts and withdrawal",
	}, []string{"token"})

	// WebSocketClients tracks connected event-stream clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wager_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wager_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
