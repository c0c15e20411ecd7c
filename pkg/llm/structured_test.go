package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type nestedSample struct {
	On bool `json:"on"`
}

type schemaSample struct {
	Action   string            `json:"action" enum:"buy,sell" description:"side"`
	Amount   float64           `json:"amount"`
	Count    int               `json:"count,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
	Nested   *nestedSample     `json:"nested,omitempty"`
	Ignored  string            `json:"-"`
	internal string
}

func TestGenerateSchema(t *testing.T) {
	schema, err := GenerateSchema(&schemaSample{})
	require.NoError(t, err)

	require.Equal(t, "object", schema["type"])
	require.ElementsMatch(t, []string{"action", "amount"}, schema["required"])

	props := schema["properties"].(map[string]any)
	require.NotContains(t, props, "Ignored")
	require.NotContains(t, props, "internal")

	action := props["action"].(map[string]any)
	require.Equal(t, "string", action["type"])
	require.Equal(t, "side", action["description"])
	require.Equal(t, []string{"buy", "sell"}, action["enum"])

	require.Equal(t, "number", props["amount"].(map[string]any)["type"])
	require.Equal(t, "integer", props["count"].(map[string]any)["type"])
	require.Equal(t, "array", props["tags"].(map[string]any)["type"])
	require.Equal(t, "object", props["extra"].(map[string]any)["type"])
	require.Equal(t, "object", props["nested"].(map[string]any)["type"])
}

func TestGenerateSchemaRejectsNonStruct(t *testing.T) {
	_, err := GenerateSchema(42)
	require.Error(t, err)
	_, err = GenerateSchema(nil)
	require.Error(t, err)
}

func TestParseStructured(t *testing.T) {
	var out schemaSample
	require.NoError(t, ParseStructured(`{"action":"sell","amount":1.5}`, &out))
	require.Equal(t, "sell", out.Action)

	out = schemaSample{}
	require.NoError(t, ParseStructured("```json\n{\"action\":\"buy\",\"amount\":2}\n```", &out))
	require.Equal(t, "buy", out.Action)
	require.InDelta(t, 2.0, out.Amount, 1e-9)

	require.Error(t, ParseStructured("not json", &out))
	require.Error(t, ParseStructured("", &out))
	require.Error(t, ParseStructured(`{}`, out))
}
