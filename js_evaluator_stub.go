//go:build !js_eval

package scenarios

// NewJSEvaluator returns nil unless the module is built with the js_eval tag.
func NewJSEvaluator(opts ...EngineOption) Evaluator {
	_ = applyEngineOptions(opts)
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}
