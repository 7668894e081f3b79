package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_DraftEmail(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
		field   string
	}{
		{
			name: "valid draft",
			doc:  `{"subject": "Application: Go Engineer", "body": "Hello team, I would love to join.", "cover_letter": "Dear hiring team, please find my letter."}`,
		},
		{
			name:    "missing cover letter",
			doc:     `{"subject": "Hi", "body": "Hello team, I would love to join."}`,
			wantErr: true,
			field:   "(root)",
		},
		{
			name:    "blank subject",
			doc:     `{"subject": "   ", "body": "Hello team, I would love to join.", "cover_letter": "Dear hiring team, please find my letter."}`,
			wantErr: true,
			field:   "subject",
		},
		{
			name:    "wrong type",
			doc:     `{"subject": 3, "body": "Hello team, I would love to join.", "cover_letter": "Dear hiring team, please find my letter."}`,
			wantErr: true,
			field:   "subject",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(DraftEmail, tt.doc)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Errors[0].Field)
			assert.NotEmpty(t, ve.Summary())
		})
	}
}

func TestValidate_BounceEvent(t *testing.T) {
	assert.NoError(t, Validate(BounceEvent, `{"event": "bounce", "email": "hr@acme.io"}`))
	assert.NoError(t, Validate(BounceEvent, `{"event": "bounce", "messageId": "m-1"}`))
	assert.Error(t, Validate(BounceEvent, `{"event": "bounce"}`))
	assert.Error(t, Validate(BounceEvent, `{"email": "hr@acme.io"}`))
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("nope", `{}`)
	var le *SchemaLoadError
	assert.ErrorAs(t, err, &le)
}

func TestValidate_MalformedDocument(t *testing.T) {
	assert.Error(t, Validate(DraftEmail, `{ invalid json }`))
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type": "object", "required": ["index"], "properties": {"index": {"type": "integer", "minimum": 0}}}`

	assert.NoError(t, ValidateJSONString(schema, `{"index": 2}`))

	err := ValidateJSONString(schema, `{"index": -1}`)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "index")
}
