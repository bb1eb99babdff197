package handlers

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// BindNestedOrFlat attempts to bind the request body to obj.
// It first checks if the body contains a nested object with the given key (e.g. {"receipt": {...}}).
// If so, it binds that nested object to obj.
// If not, or if the key is missing, it attempts to bind the entire body to obj (e.g. {...}).
// The result is then checked against obj's binding tags.
func BindNestedOrFlat(c *gin.Context, key string, obj interface{}) error {
	var bodyBytes []byte
	if c.Request.Body != nil {
		bodyBytes, _ = io.ReadAll(c.Request.Body)
	}
	// Restore body for future binding or subsequent reads
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	if err := unmarshalNestedOrFlat(bodyBytes, key, obj); err != nil {
		return err
	}
	return binding.Validator.ValidateStruct(obj)
}

func unmarshalNestedOrFlat(body []byte, key string, obj interface{}) error {
	// Nested structure { "key": { ... } }
	var nestedMap map[string]json.RawMessage
	if err := json.Unmarshal(body, &nestedMap); err == nil {
		if val, ok := nestedMap[key]; ok {
			return json.Unmarshal(val, obj)
		}
	}

	// Flat structure { ... }
	return json.Unmarshal(body, obj)
}
