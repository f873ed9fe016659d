package tools

import "time"

// ToolConfig specifies how capability calls are executed
type ToolConfig struct {
	ExecutionTimeout  time.Duration `json:"execution_timeout" yaml:"execution_timeout"`
	MaxParallelTools  int           `json:"max_parallel_tools" yaml:"max_parallel_tools"`
	AllowedTools      []string      `json:"allowed_tools" yaml:"allowed_tools"`
	ValidateArguments bool          `json:"validate_arguments" yaml:"validate_arguments"`
}

// DefaultToolConfig returns a sensible default configuration
func DefaultToolConfig() ToolConfig {
	return ToolConfig{
		ExecutionTimeout:  15 * time.Second,
		MaxParallelTools:  4,
		AllowedTools:      nil, // nil means all tools are allowed
		ValidateArguments: true,
	}
}

func (tc ToolConfig) WithExecutionTimeout(timeout time.Duration) ToolConfig {
	tc.ExecutionTimeout = timeout
	return tc
}

func (tc ToolConfig) WithMaxParallelTools(maxParallel int) ToolConfig {
	tc.MaxParallelTools = maxParallel
	return tc
}

func (tc ToolConfig) WithAllowedTools(toolNames []string) ToolConfig {
	tc.AllowedTools = toolNames
	return tc
}

func (tc ToolConfig) WithValidateArguments(validate bool) ToolConfig {
	tc.ValidateArguments = validate
	return tc
}

// IsToolAllowed checks if a tool is allowed based on the configuration
func (tc ToolConfig) IsToolAllowed(toolName string) bool {
	if tc.AllowedTools == nil {
		return true
	}
	for _, allowed := range tc.AllowedTools {
		if allowed == toolName {
			return true
		}
	}
	return false
}

// FilterTools returns only the tools that are allowed by this configuration
func (tc ToolConfig) FilterTools(defs []ToolDefinition) []ToolDefinition {
	if tc.AllowedTools == nil {
		return defs
	}
	filtered := make([]ToolDefinition, 0, len(defs))
	for _, def := range defs {
		if def.Completion || tc.IsToolAllowed(def.Name) {
			filtered = append(filtered, def)
		}
	}
	return filtered
}
