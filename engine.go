package scenarios

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Rule engines.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

var (
	ErrNoEvaluator        = errors.New("scenarios: evaluator not configured")
	ErrEngineUnavailable  = errors.New("scenarios: rule engine unavailable")
	errEmptyExpression    = errors.New("expression must not be empty")
	errMissingRuleProgram = errors.New("compiled rule missing evaluator")
)

// ProgramCache stores compiled programs. Keys are prefixed with the engine
// name so one cache can serve several engines.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// NewProgramCache returns a goroutine safe in-memory ProgramCache.
func NewProgramCache() ProgramCache {
	return &memoryProgramCache{programs: map[string]any{}}
}

type memoryProgramCache struct {
	mu       sync.RWMutex
	programs map[string]any
}

func (c *memoryProgramCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.programs[key]
	return value, ok
}

func (c *memoryProgramCache) Set(key string, value any) {
	c.mu.Lock()
	c.programs[key] = value
	c.mu.Unlock()
}

func cacheKey(engine, expression string) string {
	return engine + ":" + expression
}

type engineConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// EngineOption configures an evaluator.
type EngineOption func(*engineConfig)

// EngineWithProgramCache shares compiled programs through cache.
func EngineWithProgramCache(cache ProgramCache) EngineOption {
	return func(cfg *engineConfig) {
		cfg.cache = cache
	}
}

// EngineWithFunctionRegistry exposes the registry functions to expressions.
func EngineWithFunctionRegistry(registry *FunctionRegistry) EngineOption {
	return func(cfg *engineConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

func applyEngineOptions(opts []EngineOption) engineConfig {
	cfg := engineConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// NewEvaluator returns the evaluator for engine. An empty name selects expr.
// The js engine is only available in builds tagged js_eval.
func NewEvaluator(engine string, opts ...EngineOption) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineExpr:
		return NewExprEvaluator(opts...), nil
	case EngineCEL:
		return NewCELEvaluator(opts...), nil
	case EngineJS:
		evaluator := NewJSEvaluator(opts...)
		if evaluator == nil {
			return nil, fmt.Errorf("%w: %s (build with -tags js_eval)", ErrEngineUnavailable, EngineJS)
		}
		return evaluator, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrEngineUnavailable, engine)
	}
}

// EngineAvailable reports whether NewEvaluator can construct engine.
func EngineAvailable(engine string) bool {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineExpr, EngineCEL:
		return true
	case EngineJS:
		return jsEvaluatorAvailable()
	default:
		return false
	}
}

func evaluatorEngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return EngineExpr
	case *celEvaluator:
		return EngineCEL
	default:
		if name, ok := e.(interface{ engineName() string }); ok {
			return name.engineName()
		}
		return "custom"
	}
}
