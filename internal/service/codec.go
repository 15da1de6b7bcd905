package service

import (
	"encoding/json"
)

// jsonCodec lets connect carry the plain structs of this package, the bodies are
// ordinary JSON so any HTTP client can post to the endpoint.
type jsonCodec struct{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Marshal(message any) ([]byte, error) {
	return json.Marshal(message)
}

func (jsonCodec) Unmarshal(data []byte, message any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, message)
}
