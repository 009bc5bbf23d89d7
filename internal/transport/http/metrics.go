package httptransport

import "expvar"

var (
	metricMatchRequestTotal  = expvar.NewInt("match_request_total")
	metricMatchRequestErrors = expvar.NewInt("match_request_errors_total")
	metricMatchConsumeTotal  = expvar.NewInt("match_consume_total")

	metricChatCreateTotal  = expvar.NewInt("chat_create_total")
	metricChatCreateErrors = expvar.NewInt("chat_create_errors_total")

	metricMessageChargeTotal  = expvar.NewInt("message_charge_total")
	metricMessageChargeErrors = expvar.NewInt("message_charge_errors_total")
)
