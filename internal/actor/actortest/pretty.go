package actortest

import (
	"encoding/json"
	"fmt"
)

// Pretty renders v for assertion messages, as indented JSON when possible.
func Pretty(v any) string {
	if v == nil {
		return "<nil>"
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(data)
}
