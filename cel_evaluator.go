package scenarios

import (
	"reflect"
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	functions "github.com/google/cel-go/common/functions"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// celEvaluator runs rules with cel-go. CEL type checks against declared
// variables, so programs are cached per expression and snapshot key set.
type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

var reflectAnySlice = reflect.TypeOf([]any{})

type celProgram struct {
	program celgo.Program
}

// NewCELEvaluator constructs an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...EngineOption) Evaluator {
	cfg := applyEngineOptions(opts)
	return &celEvaluator{cache: cfg.cache, registry: cfg.registry}
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluatorError(EngineCEL, errEmptyExpression)
	}
	return e.run(ctx.withDefaults(), expression)
}

// Compile defers program construction to evaluation time because the variable
// set depends on the snapshot.
func (e *celEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError(EngineCEL, errEmptyExpression)
	}
	return &celCompiledRule{evaluator: e, expression: expression}, nil
}

func (e *celEvaluator) run(ctx RuleContext, expression string) (any, error) {
	env := ctx.environment()
	program, err := e.loadOrCompile(expression, env)
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, expression, ctx.caseLabel(), err)
	}
	out, _, err := program.program.Eval(env)
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, expression, ctx.caseLabel(), err)
	}
	return out.Value(), nil
}

func (e *celEvaluator) loadOrCompile(expression string, env map[string]any) (*celProgram, error) {
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)
	key := cacheKey(EngineCEL, expression+"|"+strings.Join(names, ","))
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*celProgram); ok {
				return program, nil
			}
		}
	}

	celEnv, err := e.buildEnv(names)
	if err != nil {
		return nil, err
	}
	ast, issues := celEnv.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := celEnv.Program(ast)
	if err != nil {
		return nil, err
	}
	bundle := &celProgram{program: prg}
	if e.cache != nil {
		e.cache.Set(key, bundle)
	}
	return bundle, nil
}

func (e *celEvaluator) buildEnv(names []string) (*celgo.Env, error) {
	opts := make([]celgo.EnvOption, 0, len(names)+1)
	for _, name := range names {
		if name == "now" {
			opts = append(opts, celgo.Variable(name, celgo.TimestampType))
			continue
		}
		opts = append(opts, celgo.Variable(name, celgo.DynType))
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call", celgo.Overload(
			"call_dyn",
			[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
			celgo.DynType,
			celgo.FunctionBinding(functions.FunctionOp(e.callBinding())),
		)))
	}
	return celgo.NewEnv(opts...)
}

type celCompiledRule struct {
	evaluator  *celEvaluator
	expression string
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil {
		return nil, wrapEvaluatorError(EngineCEL, errMissingRuleProgram)
	}
	return r.evaluator.run(ctx.withDefaults(), r.expression)
}

// callBinding serves call(name, [args...]).
func (e *celEvaluator) callBinding() func(values ...ref.Val) ref.Val {
	return func(values ...ref.Val) ref.Val {
		if len(values) != 2 {
			return types.NewErr("scenarios: call expects a name and an argument list")
		}
		name, ok := values[0].Value().(string)
		if !ok {
			return types.NewErr("scenarios: call name must be string")
		}
		list, err := values[1].ConvertToNative(reflectAnySlice)
		if err != nil {
			return types.NewErr("scenarios: call arguments must be a list: %v", err)
		}
		result, callErr := e.registry.Call(name, list.([]any)...)
		if callErr != nil {
			return types.NewErr("%s", callErr.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}
