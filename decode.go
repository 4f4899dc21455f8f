package scenarios

import (
	"fmt"

	"github.com/goliatone/go-scenarios/internal/hydrate"
)

// Decode converts the settings of a resolved config into T through its JSON
// field tags. Unknown settings keys are ignored.
func Decode[T any](config *ResolvedConfig) (T, error) {
	return decodeConfig[T](config)
}

// DecodeStrict is Decode but rejects settings keys T does not declare.
func DecodeStrict[T any](config *ResolvedConfig) (T, error) {
	return decodeConfig(config, hydrate.WithDisallowUnknownFields[T]())
}

func decodeConfig[T any](config *ResolvedConfig, opts ...hydrate.DecoderOption[T]) (T, error) {
	var zero T
	if config == nil {
		return zero, fmt.Errorf("scenarios: decode: resolved config is nil")
	}
	decoder := hydrate.NewDecoder(opts...)
	return decoder.Decode(hydrate.Context{CaseID: config.CaseID, PlanningYear: config.PlanningYear}, config.Settings)
}
