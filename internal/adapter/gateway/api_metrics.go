package gateway

import (
	"fmt"
	"io"
	"net/http"
	"runtime"
	"sort"
	"time"
)

func writeMetric(w io.Writer, name, kind, help string, value any) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %v\n", name, value)
}

// metricsHandler returns an HTTP handler for GET /metrics in Prometheus text format.
// This uses the lightweight text format to avoid pulling in the full prometheus client.
func metricsHandler(s *Server, deps HandlerDeps, startTime time.Time, metrics *Metrics) authedHandler {
	return func(w http.ResponseWriter, _ *http.Request, _ *ClientInfo) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		st := buildStatus(s, deps, startTime, metrics)

		writeMetric(w, "canvaschat_connections_active", "gauge", "Open websocket connections.", st.Connections.Active)
		writeMetric(w, "canvaschat_connections_total", "counter", "Websocket connections accepted.", st.Connections.Total)
		writeMetric(w, "canvaschat_messages_received_total", "counter", "Questions accepted.", st.Messages.Received)
		writeMetric(w, "canvaschat_messages_answered_total", "counter", "Questions answered by the webhook.", st.Messages.Answered)
		writeMetric(w, "canvaschat_messages_failed_total", "counter", "Questions whose exchange failed.", st.Messages.Failed)
		writeMetric(w, "canvaschat_messages_stale_total", "counter", "Replies dropped after a conversation switch.", st.Messages.Stale)
		writeMetric(w, "canvaschat_conversations_created_total", "counter", "Conversations created.", metrics.Conversations.Load())
		writeMetric(w, "canvaschat_executions_total", "counter", "Remote executions started.", st.Executions.Total)
		writeMetric(w, "canvaschat_execution_errors_total", "counter", "Remote executions that failed.", st.Executions.Failed)
		writeMetric(w, "canvaschat_render_cache_entries", "gauge", "Render models cached.", st.RenderCache)

		if len(st.Breakers) > 0 {
			names := make([]string, 0, len(st.Breakers))
			for name := range st.Breakers {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Fprintf(w, "# HELP canvaschat_breaker_open Whether an outbound circuit breaker is not closed.\n")
			fmt.Fprintf(w, "# TYPE canvaschat_breaker_open gauge\n")
			for _, name := range names {
				open := 0
				if st.Breakers[name] != "closed" {
					open = 1
				}
				fmt.Fprintf(w, "canvaschat_breaker_open{subsystem=%q} %d\n", name, open)
			}
		}

		writeMetric(w, "canvaschat_uptime_seconds", "gauge", "Seconds since the gateway started.", st.Service.UptimeSeconds)

		// Go runtime metrics.
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		writeMetric(w, "go_goroutines", "gauge", "Number of goroutines.", runtime.NumGoroutine())
		writeMetric(w, "go_memstats_alloc_bytes", "gauge", "Bytes of allocated heap objects.", mem.Alloc)
		writeMetric(w, "go_memstats_sys_bytes", "gauge", "Total bytes of memory obtained from the OS.", mem.Sys)
		writeMetric(w, "go_gc_duration_seconds", "gauge", "Total GC pause duration.", fmt.Sprintf("%f", float64(mem.PauseTotalNs)/1e9))
	}
}
