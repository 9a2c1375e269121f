package observability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

type LokiClient struct {
	url            string
	username       string
	apiKey         string
	httpClient     *http.Client
	enabled        bool
	appName        string
	instanceID     string
	instanceRegion string
}

// Loki Push API format
type lokiPushRequest struct {
	Streams []lokiStream `json:"streams"`
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

var defaultClient *LokiClient

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Init configures the Loki client from GRAFANA_LOKI_* variables.
func Init() {
	url := os.Getenv("GRAFANA_LOKI_URL")
	username := os.Getenv("GRAFANA_LOKI_USER")
	apiKey := os.Getenv("GRAFANA_LOKI_API_KEY")

	appName := os.Getenv("APP_ENV")
	if appName == "" {
		appName = "zoho-books-mcp-dev"
	}

	instanceID := firstNonEmpty(os.Getenv("INSTANCE_ID"), hostname(), "local")
	instanceRegion := firstNonEmpty(os.Getenv("INSTANCE_REGION"), "local")

	if url == "" || username == "" || apiKey == "" {
		Logger().Debug("loki not configured, push disabled")
		defaultClient = &LokiClient{enabled: false, appName: appName, instanceID: instanceID, instanceRegion: instanceRegion}
		return
	}

	defaultClient = &LokiClient{
		url:            url + "/loki/api/v1/push",
		username:       username,
		apiKey:         apiKey,
		httpClient:     &http.Client{Timeout: 5 * time.Second},
		enabled:        true,
		appName:        appName,
		instanceID:     instanceID,
		instanceRegion: instanceRegion,
	}
	Logger().Info("loki client initialized", zap.String("url", defaultClient.url))
}

func hostname() string {
	h, _ := os.Hostname()
	return h
}

// Push ships one log line asynchronously. It is a no-op when Loki is not configured.
func Push(labels map[string]string, data map[string]any) {
	if defaultClient == nil || !defaultClient.enabled {
		return
	}

	go defaultClient.push(labels, data)
}

func (c *LokiClient) push(labels map[string]string, data map[string]any) {
	if labels == nil {
		labels = make(map[string]string)
	}
	labels["app"] = c.appName
	labels["instance"] = c.instanceID
	labels["region"] = c.instanceRegion

	dataJSON, err := json.Marshal(data)
	if err != nil {
		Logger().Warn("loki: marshal data", zap.Error(err))
		return
	}

	timestamp := strconv.FormatInt(time.Now().UnixNano(), 10)

	req := lokiPushRequest{
		Streams: []lokiStream{
			{
				Stream: labels,
				Values: [][]string{
					{timestamp, string(dataJSON)},
				},
			},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		Logger().Warn("loki: marshal request", zap.Error(err))
		return
	}

	httpReq, err := http.NewRequest("POST", c.url, bytes.NewReader(body))
	if err != nil {
		Logger().Warn("loki: create request", zap.Error(err))
		return
	}

	httpReq.SetBasicAuth(c.username, c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		Logger().Warn("loki: send", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		Logger().Warn("loki: unexpected status", zap.Int("status", resp.StatusCode))
		return
	}
}

// LogToolCall records one tool invocation.
func LogToolCall(requestID, module, tool string, durationMs int64, status string, errMsg string) {
	level := "info"
	if status == "error" {
		level = "error"
	}
	labels := map[string]string{
		"module": module,
		"status": status,
		"level":  level,
	}

	data := map[string]any{
		"request_id":  requestID,
		"module":      module,
		"tool":        tool,
		"duration_ms": durationMs,
		"status":      status,
	}

	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("tool", tool),
		zap.Int64("duration_ms", durationMs),
	}
	if errMsg != "" {
		data["error"] = errMsg
		Logger().Named(module).Warn("tool call failed", append(fields, zap.String("error", errMsg))...)
	} else {
		Logger().Named(module).Debug("tool call", fields...)
	}

	Push(labels, data)
}

// LogRequest logs an incoming HTTP request to Loki
func LogRequest(method, path string, statusCode int, durationMs int64) {
	Logger().Debug("http request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", statusCode),
		zap.Int64("duration_ms", durationMs),
	)

	labels := map[string]string{
		"type":   "request",
		"method": method,
		"path":   path,
		"level":  "info",
	}

	data := map[string]any{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
		"duration_ms": durationMs,
	}

	Push(labels, data)
}

// LogError records an error that has no better home.
func LogError(context string, err error) {
	Logger().Error(context, zap.Error(err))

	labels := map[string]string{
		"type":  "error",
		"level": "error",
	}

	data := map[string]any{
		"context": context,
		"error":   fmt.Sprintf("%v", err),
	}

	Push(labels, data)
}

// LogSecurityEvent records a rejected or suspicious request.
func LogSecurityEvent(requestID, subject, event string, details map[string]any) {
	Logger().Warn("security event", zap.String("event", event), zap.String("request_id", requestID), zap.Any("details", details))

	labels := map[string]string{
		"type":  "security",
		"level": "warn",
	}

	data := map[string]any{
		"request_id": requestID,
		"subject":    subject,
		"event":      event,
	}
	for k, v := range details {
		data[k] = v
	}

	Push(labels, data)
}
