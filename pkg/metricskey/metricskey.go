package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	// StatsLLMInputTokens is base for counter metric for total input tokens sent to LLM
	StatsLLMInputTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_input_tokens",
		Help:         "stats_llm_input_tokens provides total input tokens sent to LLM",
		RequiredTags: []string{"provider", "model"},
	}

	StatsLLMOutputTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_output_tokens",
		Help:         "stats_llm_output_tokens provides total output tokens received from LLM",
		RequiredTags: []string{"provider", "model"},
	}

	StatsDecisionsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_decisions_succeeded",
		Help:         "stats_decisions_succeeded provides total tool decisions made by LLM",
		RequiredTags: []string{"provider", "model"},
	}

	StatsDecisionsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_decisions_failed",
		Help:         "stats_decisions_failed provides total failed LLM decision requests",
		RequiredTags: []string{"provider", "model"},
	}

	StatsDecisionsNoTool = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_decisions_no_tool",
		Help:         "stats_decisions_no_tool provides total LLM replies without tool choice",
		RequiredTags: []string{"provider", "model"},
	}

	StatsDispatchCompleted = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_dispatch_completed",
		Help:         "stats_dispatch_completed provides total dispatch cycles completed",
		RequiredTags: []string{"tool"},
	}

	StatsDispatchFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_dispatch_failed",
		Help:         "stats_dispatch_failed provides total dispatch cycles failed",
		RequiredTags: []string{"state"},
	}

	StatsDispatchInvalidChoice = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_dispatch_invalid_choice",
		Help:         "stats_dispatch_invalid_choice provides total decisions naming an unlisted tool",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_succeeded",
		Help:         "stats_tool_calls_succeeded provides total tool calls succeeded",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_failed",
		Help:         "stats_tool_calls_failed provides total tool calls failed",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsNotFound = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_not_found",
		Help:         "stats_tool_calls_not_found provides total tool calls not found",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsInvalidArgs = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_invalid_args",
		Help:         "stats_tool_calls_invalid_args provides total tool calls rejected by argument validation",
		RequiredTags: []string{"tool"},
	}

	StatsRPCRequests = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_rpc_requests",
		Help:         "stats_rpc_requests provides total JSON-RPC requests served",
		RequiredTags: []string{"method"},
	}
)

// Perf
var (
	PerfDecision = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_decision",
		Help:         "perf_decision provides duration of LLM decision request",
		RequiredTags: []string{"provider", "model"},
	}

	PerfDispatchRun = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_dispatch_run",
		Help:         "perf_dispatch_run provides duration of list, decide and invoke cycle",
		RequiredTags: []string{"source"},
	}

	PerfToolCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_tool_call",
		Help:         "perf_tool_call provides duration of tool call",
		RequiredTags: []string{"tool"},
	}
)

// Metrics returns slice of metrics from this repo
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfDecision,
	&PerfDispatchRun,
	&PerfToolCall,
	&StatsDecisionsFailed,
	&StatsDecisionsNoTool,
	&StatsDecisionsSucceeded,
	&StatsDispatchCompleted,
	&StatsDispatchFailed,
	&StatsDispatchInvalidChoice,
	&StatsLLMInputTokens,
	&StatsLLMOutputTokens,
	&StatsRPCRequests,
	&StatsToolCallsFailed,
	&StatsToolCallsInvalidArgs,
	&StatsToolCallsNotFound,
	&StatsToolCallsSucceeded,
}
