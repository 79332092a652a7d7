package agent

import (
	"encoding/json"

	"codeintel/internal/tools"
)

func jsonMarshalParams(params map[string]interface{}) (string, error) {
	if params == nil {
		return "{}", nil
	}
	out, err := json.Marshal(params)
	if err != nil {
		return "{}", err
	}
	return string(out), nil
}

func jsonMarshalManifest(registry *tools.Registry) (string, error) {
	out, err := json.Marshal(registry.Manifest())
	if err != nil {
		return "[]", err
	}
	return string(out), nil
}
