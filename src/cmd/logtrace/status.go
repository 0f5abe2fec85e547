// FILE: logtrace/src/cmd/logtrace/status.go
package main

import (
	"context"
	"fmt"
	"time"

	"logtrace/src/internal/config"
	"logtrace/src/internal/service"
)

const statusInterval = 30 * time.Second

// statusReporter periodically logs pipeline status until ctx ends
func statusReporter(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reportStatus(svc)
		}
	}
}

// reportStatus logs one status snapshot of every pipeline
func reportStatus(svc *service.Service) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("msg", "Panic in status reporter",
				"component", "status_reporter",
				"panic", r)
		}
	}()

	stats := svc.GetGlobalStats()
	if failed, _ := stats["failed_pipelines"].(map[string]string); len(failed) > 0 {
		logger.Warn("msg", "Pipelines retired after failure",
			"component", "status_reporter",
			"failed", failed)
	}

	totalPipelines, ok := stats["total_pipelines"].(int)
	if !ok || totalPipelines == 0 {
		logger.Warn("msg", "No active pipelines in status report",
			"component", "status_reporter")
		return
	}

	logger.Debug("msg", "Status report",
		"component", "status_reporter",
		"active_pipelines", totalPipelines,
		"time", time.Now().Format("15:04:05"))

	pipelines, _ := stats["pipelines"].(map[string]any)
	for name, pipelineStats := range pipelines {
		if ps, ok := pipelineStats.(map[string]any); ok {
			logger.Debug(pipelineStatusFields(name, ps)...)
		}
	}
}

// pipelineStatusFields flattens pipeline stats into logger key/value pairs
func pipelineStatusFields(name string, stats map[string]any) []any {
	fields := []any{
		"msg", "Pipeline status",
		"component", "status_reporter",
		"pipeline", name,
	}

	if v, ok := stats["total_processed"].(uint64); ok {
		fields = append(fields, "entries_processed", v)
	}
	if v, ok := stats["total_filtered"].(uint64); ok {
		fields = append(fields, "entries_filtered", v)
	}
	if v, ok := stats["total_dropped_rate_limit"].(uint64); ok && v > 0 {
		fields = append(fields, "entries_rate_limited", v)
	}

	if src, ok := stats["source"].(map[string]any); ok {
		if details, ok := src["details"].(map[string]any); ok {
			if engine, ok := details["engine"].(map[string]any); ok {
				fields = append(fields,
					"polls", engine["polls"],
					"duplicates", engine["duplicates"],
					"backpressure_drops", engine["dropped_backpressure"])
			}
			if errMsg, ok := details["error"].(string); ok {
				fields = append(fields, "source_error", errMsg)
			}
		}
	}

	if sinks, ok := stats["sinks"].([]map[string]any); ok {
		var tcpConns, httpConns int64
		for _, s := range sinks {
			active, _ := s["active_connections"].(int64)
			switch s["type"] {
			case "tcp":
				tcpConns += active
			case "http":
				httpConns += active
			}
		}
		if tcpConns > 0 {
			fields = append(fields, "tcp_connections", tcpConns)
		}
		if httpConns > 0 {
			fields = append(fields, "http_connections", httpConns)
		}
	}

	return fields
}

// displayPipelineEndpoints logs where a pipeline can be consumed
func displayPipelineEndpoints(cfg *config.PipelineConfig) {
	if cfg.Trace != nil {
		logger.Info("msg", "Trace source configured",
			"component", "main",
			"pipeline", cfg.Name,
			"subsystem", cfg.Trace.Subsystem,
			"category", cfg.Trace.Category,
			"minimum_level", cfg.Trace.MinimumLevel,
			"scope", cfg.Trace.Scope)
	}

	for i, sinkCfg := range cfg.Sinks {
		switch sinkCfg.Type {
		case "tcp":
			if sinkCfg.TCP == nil {
				continue
			}
			logger.Info("msg", "TCP endpoint configured",
				"component", "main",
				"pipeline", cfg.Name,
				"sink_index", i,
				"listen", fmt.Sprintf("%s:%d", displayHost(sinkCfg.TCP.Host), sinkCfg.TCP.Port))

			if nl := sinkCfg.TCP.NetLimit; nl != nil && nl.Enabled {
				logger.Info("msg", "TCP net limiting enabled",
					"component", "main",
					"pipeline", cfg.Name,
					"sink_index", i,
					"max_connections_total", nl.MaxConnectionsTotal)
			}

		case "http":
			h := sinkCfg.HTTP
			if h == nil {
				continue
			}
			host := displayHost(h.Host)
			logger.Info("msg", "HTTP endpoints configured",
				"component", "main",
				"pipeline", cfg.Name,
				"sink_index", i,
				"listen", fmt.Sprintf("%s:%d", host, h.Port),
				"stream_url", fmt.Sprintf("http://%s:%d%s", host, h.Port, h.StreamPath),
				"status_url", fmt.Sprintf("http://%s:%d%s", host, h.Port, h.StatusPath))

			if nl := h.NetLimit; nl != nil && nl.Enabled {
				logger.Info("msg", "HTTP net limiting enabled",
					"component", "main",
					"pipeline", cfg.Name,
					"sink_index", i,
					"requests_per_second", nl.RequestsPerSecond,
					"burst_size", nl.BurstSize)
			}
			if h.Auth != nil && h.Auth.Type != "" && h.Auth.Type != "none" {
				logger.Info("msg", "Authentication enabled",
					"component", "main",
					"pipeline", cfg.Name,
					"sink_index", i,
					"auth_type", h.Auth.Type)
			}

		case "console":
			target := "stdout"
			if sinkCfg.Console != nil && sinkCfg.Console.Target != "" {
				target = sinkCfg.Console.Target
			}
			logger.Info("msg", "Console sink configured",
				"component", "main",
				"pipeline", cfg.Name,
				"sink_index", i,
				"target", target)
		}
	}

	if len(cfg.Filters) > 0 {
		logger.Info("msg", "Filters configured",
			"component", "main",
			"pipeline", cfg.Name,
			"filter_count", len(cfg.Filters))
	}
}

func displayHost(host string) string {
	if host == "" || host == "0.0.0.0" {
		return "localhost"
	}
	return host
}
