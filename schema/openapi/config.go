package openapi

import (
	"strings"
)

type generatorConfig struct {
	openAPIVersion string
	info           openapiInfo
	operation      operationConfig
	contentType    string
	responses      map[string]responseConfig
	rootComponent  string
	casePath       string
	enums          bool
}

type openapiInfo struct {
	Title       string
	Version     string
	Description string
}

type operationConfig struct {
	Path        string
	Method      string
	OperationID string
	Summary     string
}

type responseConfig struct {
	Description string
}

func defaultGeneratorConfig() generatorConfig {
	return generatorConfig{
		openAPIVersion: "3.0.3",
		info: openapiInfo{
			Title:   "Scenario Settings",
			Version: "1.0.0",
		},
		operation: operationConfig{
			Path:        "/settings",
			Method:      "post",
			OperationID: "post:/settings",
		},
		contentType: "application/json",
		responses: map[string]responseConfig{
			"204": {Description: "Settings accepted"},
			"422": {Description: "Settings failed validation"},
		},
		casePath: "/cases/{case_id}/{planning_year}",
		enums:    true,
	}
}

// GeneratorOption configures the OpenAPI generator behaviour.
type GeneratorOption func(*generatorConfig)

// WithOpenAPIVersion overrides the OpenAPI version string (default: 3.0.3).
func WithOpenAPIVersion(version string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if version == "" {
			return
		}
		cfg.openAPIVersion = version
	}
}

// InfoOption configures optional fields on the OpenAPI info section.
type InfoOption func(*openapiInfo)

// WithInfoDescription sets the optional description field for the info section.
func WithInfoDescription(description string) InfoOption {
	return func(info *openapiInfo) {
		info.Description = description
	}
}

// WithInfo configures the info block. Empty strings retain the existing values.
func WithInfo(title, version string, opts ...InfoOption) GeneratorOption {
	return func(cfg *generatorConfig) {
		if title != "" {
			cfg.info.Title = title
		}
		if version != "" {
			cfg.info.Version = version
		}
		for _, opt := range opts {
			if opt != nil {
				opt(&cfg.info)
			}
		}
	}
}

// WithOperation configures the path, method and operationId the settings
// schema is published under. Empty inputs retain the defaults.
func WithOperation(path, method, operationID, summary string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if path != "" {
			cfg.operation.Path = path
		}
		if method != "" {
			cfg.operation.Method = strings.ToLower(method)
		}
		if operationID != "" {
			cfg.operation.OperationID = operationID
		}
		if summary != "" {
			cfg.operation.Summary = summary
		}
	}
}

// WithContentType sets the content type of the request body.
func WithContentType(contentType string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if contentType == "" {
			return
		}
		cfg.contentType = contentType
	}
}

// WithResponse registers or overrides the response for status.
func WithResponse(status, description string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if status == "" {
			return
		}
		if cfg.responses == nil {
			cfg.responses = map[string]responseConfig{}
		}
		cfg.responses[status] = responseConfig{Description: description}
	}
}

// WithRootComponent publishes the root schema under components with name.
func WithRootComponent(name string) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.rootComponent = name
	}
}

// WithCasePath sets the path of the resolved case lookup operation. An empty
// path omits the operation.
func WithCasePath(path string) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.casePath = path
	}
}

// WithEnums controls whether string parameters list the baseline value and
// every catalog alternative as an enum. Enabled by default.
func WithEnums(enabled bool) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.enums = enabled
	}
}
