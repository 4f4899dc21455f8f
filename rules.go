package scenarios

import (
	"fmt"
	"strings"
	"time"
)

// RuleContext returns the evaluation context for c: its settings as the
// snapshot plus case metadata.
func (c *ResolvedConfig) RuleContext() RuleContext {
	if c == nil {
		return RuleContext{}
	}
	return RuleContext{
		Snapshot:     c.Settings.NativeMap(),
		CaseID:       c.CaseID,
		PlanningYear: c.PlanningYear,
		Period:       c.Period,
	}
}

// Evaluate runs expr against the resolved settings. A nil evaluator selects
// the expr engine.
func (c *ResolvedConfig) Evaluate(evaluator Evaluator, expr string) (any, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("scenarios: %w", errEmptyExpression)
	}
	if evaluator == nil {
		evaluator = NewExprEvaluator()
	}
	ctx := c.RuleContext().withDefaults()
	value, err := evaluator.Evaluate(ctx, expr)
	return value, wrapEvaluationError(evaluatorEngineName(evaluator), expr, ctx.caseLabel(), err)
}

// ruleSet holds rules compiled once per validation run.
type ruleSet struct {
	rules    []Rule
	programs []CompiledRule
	errs     []error
	engines  []string
	logger   EvaluatorLogger
}

func compileRules(rules []Rule, evaluators *evaluatorPool, logger EvaluatorLogger) *ruleSet {
	set := &ruleSet{
		rules:    rules,
		programs: make([]CompiledRule, len(rules)),
		errs:     make([]error, len(rules)),
		engines:  make([]string, len(rules)),
		logger:   logger,
	}
	for i, rule := range rules {
		evaluator, err := evaluators.get(rule.Engine)
		if err != nil {
			set.errs[i] = err
			continue
		}
		set.engines[i] = evaluatorEngineName(evaluator)
		program, err := evaluator.Compile(rule.Expr)
		if err != nil {
			set.errs[i] = withRule(wrapEvaluationError(set.engines[i], rule.Expr, "", err), rule.Name)
			continue
		}
		set.programs[i] = program
	}
	return set
}

// check evaluates rule i against ctx. A rule passes when it yields true.
func (s *ruleSet) check(i int, ctx RuleContext) (bool, error) {
	if s.errs[i] != nil {
		return false, s.errs[i]
	}
	rule := s.rules[i]
	start := time.Now()
	value, err := s.programs[i].Evaluate(ctx)
	err = withRule(wrapEvaluationError(s.engines[i], rule.Expr, ctx.caseLabel(), err), rule.Name)
	s.logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   s.engines[i],
		Rule:     rule.Name,
		Expr:     rule.Expr,
		Case:     ctx.caseLabel(),
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return false, err
	}
	passed, ok := value.(bool)
	if !ok {
		err := fmt.Errorf("rule must yield a boolean, got %T", value)
		return false, withRule(wrapEvaluationError(s.engines[i], rule.Expr, ctx.caseLabel(), err), rule.Name)
	}
	return passed, nil
}

// evaluatorPool lazily builds one evaluator per engine sharing a program
// cache and function registry.
type evaluatorPool struct {
	options    []EngineOption
	evaluators map[string]Evaluator
	override   Evaluator
}

func newEvaluatorPool(override Evaluator, opts ...EngineOption) *evaluatorPool {
	return &evaluatorPool{
		options:    opts,
		evaluators: map[string]Evaluator{},
		override:   override,
	}
}

func (p *evaluatorPool) get(engine string) (Evaluator, error) {
	engine = strings.ToLower(strings.TrimSpace(engine))
	if engine == "" && p.override != nil {
		return p.override, nil
	}
	if engine == "" {
		engine = EngineExpr
	}
	if evaluator, ok := p.evaluators[engine]; ok {
		return evaluator, nil
	}
	evaluator, err := NewEvaluator(engine, p.options...)
	if err != nil {
		return nil, err
	}
	p.evaluators[engine] = evaluator
	return evaluator, nil
}
