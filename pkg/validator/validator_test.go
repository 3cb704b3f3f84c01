package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ingestPayload struct {
	DocumentID string `json:"document_id" validate:"required,notblank,nocontrol,max=20"`
	Label      string `json:"label" validate:"trimmed"`
	Priority   int    `json:"priority" validate:"gte=0,lte=10"`
}

func TestGlobalIsSingleton(t *testing.T) {
	assert.Same(t, Global(), Global())
}

func TestValidateWithLang(t *testing.T) {
	v := New()

	assert.Nil(t, v.ValidateWithLang(&ingestPayload{DocumentID: "book-1", Priority: 3}, LangEN))

	verr := v.ValidateWithLang(&ingestPayload{DocumentID: "", Priority: 11}, LangEN)
	require.True(t, verr.HasErrors())
	assert.Len(t, verr.Errors, 2)
	assert.Equal(t, "document_id", verr.Errors[0].Field)
	assert.Equal(t, "required", verr.Errors[0].Tag)
	assert.NotEmpty(t, verr.ForField("priority"))
	assert.Contains(t, verr.Error(), "validation failed: ")
}

func TestCustomRules(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		payload ingestPayload
		tag     string
	}{
		{"blank id", ingestPayload{DocumentID: "   "}, TagNotBlank},
		{"control char", ingestPayload{DocumentID: "doc\x00id"}, TagNoControl},
		{"untrimmed label", ingestPayload{DocumentID: "doc", Label: " x "}, TagTrimmed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := v.ValidateWithLang(&tt.payload, LangEN)
			require.True(t, verr.HasErrors())
			assert.Equal(t, tt.tag, verr.Errors[0].Tag)
		})
	}
}

func TestCustomRuleTranslations(t *testing.T) {
	v := New()
	p := &ingestPayload{DocumentID: "  "}

	en := v.ValidateWithLang(p, "en-US")
	require.True(t, en.HasErrors())
	assert.Equal(t, "document_id must not be blank", en.First())

	zh := v.ValidateWithLang(p, "zh-CN")
	require.True(t, zh.HasErrors())
	assert.Equal(t, "document_id不能为空白", zh.First())
}

func TestValidateStruct(t *testing.T) {
	v := New()

	assert.NoError(t, v.ValidateStruct(nil))
	assert.NoError(t, v.ValidateStruct("not a struct"))
	assert.NoError(t, v.ValidateStruct(&ingestPayload{DocumentID: "ok"}))

	err := v.ValidateStruct(&ingestPayload{})
	var verr *ValidationErrors
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{verr.First()}, verr.Messages())
}

func TestValidateVar(t *testing.T) {
	v := New()
	assert.NoError(t, v.ValidateVar("abc", "notblank"))
	assert.Error(t, v.ValidateVar("", "notblank"))
}
