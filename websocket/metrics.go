package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wsConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connected_clients",
		Help: "The number of clients connected to the frame stream.",
	})

	wsSentMsgs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_sent_msgs",
		Help: "The number of messages sent to WebSocket clients.",
	})

	wsSentBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_sent_bytes",
		Help: "The number of bytes sent to WebSocket clients.",
	})

	wsSendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_send_errors",
		Help: "The number of messages that could not be sent to WebSocket clients.",
	})

	wsDroppedMsgs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_dropped_msgs",
		Help: "The number of messages not sent because a client was too slow.",
	})
)

func instrumentClients(n int) {
	wsConnectedClients.Set(float64(n))
}

func instrumentSent(size int) {
	wsSentMsgs.Inc()
	wsSentBytes.Add(float64(size))
}

func instrumentSendError() {
	wsSendErrors.Inc()
}

func instrumentDropped() {
	wsDroppedMsgs.Inc()
}
