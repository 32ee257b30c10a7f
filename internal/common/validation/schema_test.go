package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRequestSchema(t *testing.T) {
	schema := MustCompile(ChatRequestSchema)

	tests := []struct {
		name      string
		body      string
		wantValid bool
		wantField string
	}{
		{
			name:      "single user message",
			body:      `{"messages":[{"role":"user","content":"hello","id":"1"}]}`,
			wantValid: true,
		},
		{
			name:      "numeric id",
			body:      `{"messages":[{"role":"user","content":"hello","id":1700000000}]}`,
			wantValid: true,
		},
		{
			name:      "missing messages",
			body:      `{}`,
			wantField: "(root)",
		},
		{
			name:      "empty messages",
			body:      `{"messages":[]}`,
			wantField: "messages",
		},
		{
			name:      "unknown role",
			body:      `{"messages":[{"role":"tool","content":"x"}]}`,
			wantField: "messages.0.role",
		},
		{
			name:      "malformed json",
			body:      `{"messages":`,
			wantField: "(root)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := schema.ValidateBytes([]byte(tt.body))
			assert.Equal(t, tt.wantValid, result.Valid)
			if !tt.wantValid {
				require.NotEmpty(t, result.Errors)
				assert.Equal(t, tt.wantField, result.Errors[0].Field)
				assert.NotEmpty(t, FormatErrors(result.Errors))
			}
		})
	}
}

func TestFeedbackRequestSchema(t *testing.T) {
	schema := MustCompile(FeedbackRequestSchema)

	assert.True(t, schema.ValidateBytes([]byte(`{"message":"nice"}`)).Valid)
	assert.False(t, schema.ValidateBytes([]byte(`{"message":""}`)).Valid)
	assert.False(t, schema.ValidateValue(map[string]interface{}{"text": "x"}).Valid)
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
}
