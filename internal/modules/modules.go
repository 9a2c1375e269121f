package modules

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"zohobooks-mcp/server/internal/apperrors"
	"zohobooks-mcp/server/internal/middleware"
	"zohobooks-mcp/server/internal/observability"
)

// =============================================================================
// Registry
// =============================================================================

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Module)
)

// RegisterModule adds a module to the registry
func RegisterModule(m Module) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[m.Name()] = m
}

// GetModule returns a module by name
func GetModule(name string) (Module, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	m, ok := registry[name]
	return m, ok
}

// ListModules returns all registered module names, sorted.
func ListModules() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resetRegistry is used by tests.
func resetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Module)
}

// AllTools returns every registered tool, grouped by module name.
func AllTools() []Tool {
	var tools []Tool
	for _, name := range ListModules() {
		m, _ := GetModule(name)
		tools = append(tools, m.Tools()...)
	}
	return tools
}

// FindTool returns the module owning toolName.
func FindTool(toolName string) (Module, Tool, bool) {
	for _, name := range ListModules() {
		m, _ := GetModule(name)
		if tool, ok := findTool(m.Tools(), toolName); ok {
			return m, tool, true
		}
	}
	return nil, Tool{}, false
}

// =============================================================================
// Resources
// =============================================================================

// AllResources returns every registered resource.
func AllResources() []Resource {
	var resources []Resource
	for _, name := range ListModules() {
		m, _ := GetModule(name)
		resources = append(resources, m.Resources()...)
	}
	return resources
}

// ReadResource returns the content and metadata of uri, or NotFoundError.
func ReadResource(ctx context.Context, uri string) (Resource, string, error) {
	for _, name := range ListModules() {
		m, _ := GetModule(name)
		for _, r := range m.Resources() {
			if r.URI != uri {
				continue
			}
			content, err := m.ReadResource(ctx, uri)
			if err != nil {
				return Resource{}, "", err
			}
			return r, content, nil
		}
	}
	return Resource{}, "", &apperrors.NotFoundError{Message: "Resource not found: " + uri}
}

// =============================================================================
// Usage Recording
// =============================================================================

// UsageEvent describes one finished tool call. Arguments are never included.
type UsageEvent struct {
	RequestID  string
	Module     string
	Tool       string
	Status     string
	DurationMs int64
	Error      string
}

// UsageRecorder persists usage events.
type UsageRecorder interface {
	RecordToolCall(ctx context.Context, ev UsageEvent) error
}

var (
	recorderMu sync.RWMutex
	recorder   UsageRecorder
)

// SetUsageRecorder installs r; nil disables recording.
func SetUsageRecorder(r UsageRecorder) {
	recorderMu.Lock()
	defer recorderMu.Unlock()
	recorder = r
}

func recordUsage(ctx context.Context, ev UsageEvent) {
	recorderMu.RLock()
	r := recorder
	recorderMu.RUnlock()
	if r == nil {
		return
	}
	go func() {
		if err := r.RecordToolCall(context.WithoutCancel(ctx), ev); err != nil {
			observability.Logger().Named("modules").Warn("usage record failed",
				zap.String("tool", ev.Tool), zap.Error(err))
		}
	}()
}

// =============================================================================
// Metrics
// =============================================================================

var (
	metricsOnce   sync.Once
	toolCalls     metric.Int64Counter
	toolDurations metric.Int64Histogram
)

func instruments() (metric.Int64Counter, metric.Int64Histogram) {
	metricsOnce.Do(func() {
		meter := observability.Meter()
		var err error
		toolCalls, err = meter.Int64Counter("mcp.tool.calls",
			metric.WithDescription("Number of tool calls by tool and status"))
		if err != nil {
			observability.LogError("create mcp.tool.calls counter", err)
		}
		toolDurations, err = meter.Int64Histogram("mcp.tool.duration",
			metric.WithDescription("Tool call duration"),
			metric.WithUnit("ms"))
		if err != nil {
			observability.LogError("create mcp.tool.duration histogram", err)
		}
	})
	return toolCalls, toolDurations
}

// =============================================================================
// Tool Execution
// =============================================================================

// toolTimeout is the maximum duration for a single tool execution.
const toolTimeout = 30 * time.Second

// ErrorResult wraps err as a successful result whose text is {"error": msg}.
// Business failures travel as data, never as protocol errors.
func ErrorResult(err error) *ToolCallResult {
	return TextResult(ErrorJSON(err.Error()))
}

// Run looks up toolName across registered modules, validates params and
// executes it. Every failure is returned as an ErrorResult.
func Run(ctx context.Context, toolName string, params map[string]any) *ToolCallResult {
	m, tool, ok := FindTool(toolName)
	if !ok {
		requestID := middleware.GetRequestID(ctx)
		observability.LogToolCall(requestID, "", toolName, 0, "error", "unknown tool")
		return ErrorResult(&apperrors.UnknownToolError{Name: toolName})
	}
	return dispatch(ctx, m, tool, params)
}

// dispatch executes one tool of m and records its outcome.
func dispatch(ctx context.Context, m Module, tool Tool, params map[string]any) *ToolCallResult {
	start := time.Now()
	moduleName := m.Name()

	ctx, span := observability.Tracer().Start(ctx, "mcp.tool "+tool.Name)
	defer span.End()

	result, err := execute(ctx, m, tool, params)

	durationMs := time.Since(start).Milliseconds()
	requestID := middleware.GetRequestID(ctx)
	status := "success"
	errMsg := ""
	if err != nil {
		status = "error"
		errMsg = err.Error()
		span.RecordError(err)
	}

	attrs := metric.WithAttributes(
		attribute.String("module", moduleName),
		attribute.String("tool", tool.Name),
		attribute.String("status", status),
	)
	if counter, hist := instruments(); counter != nil && hist != nil {
		counter.Add(ctx, 1, attrs)
		hist.Record(ctx, durationMs, attrs)
	}
	observability.LogToolCall(requestID, moduleName, tool.Name, durationMs, status, errMsg)
	recordUsage(ctx, UsageEvent{
		RequestID:  requestID,
		Module:     moduleName,
		Tool:       tool.Name,
		Status:     status,
		DurationMs: durationMs,
		Error:      errMsg,
	})

	if err != nil {
		return ErrorResult(err)
	}
	return TextResult(result)
}

func execute(ctx context.Context, m Module, tool Tool, params map[string]any) (string, error) {
	validated, err := ValidateParams(tool.InputSchema, params)
	if err != nil {
		return "", err
	}

	// Apply timeout to prevent external API calls from hanging indefinitely
	ctx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	result, err := m.ExecuteTool(ctx, tool.Name, validated)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", errors.Errorf("Request to %s timed out after %s. The external service did not respond in time.", m.Name(), toolTimeout)
		}
		return "", err
	}
	return result, nil
}
