package sitecontent_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/site-content/pkg/sitecontent"
)

func TestDecodeDocument(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "object", input: `{"a":1}`},
		{name: "empty object", input: `{}`},
		{name: "surrounding whitespace", input: " \n{\"a\":1}\n "},
		{name: "array", input: `[1,2]`, wantErr: true},
		{name: "string", input: `"text"`, wantErr: true},
		{name: "null", input: `null`, wantErr: true},
		{name: "empty body", input: ``, wantErr: true},
		{name: "truncated", input: `{"a":`, wantErr: true},
		{name: "trailing data", input: `{"a":1}{"b":2}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := sitecontent.DecodeDocument(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, sitecontent.ErrMalformedPayload)
				assert.Nil(t, doc)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, doc)
		})
	}
}

func TestDocumentEncode(t *testing.T) {
	doc := mustParse(t, `{"b":{"y":2,"x":"<a>"},"a":[1.0,true,null]}`)

	data, err := doc.Encode()
	require.NoError(t, err)

	expected := "{\n" +
		"  \"a\": [\n" +
		"    1.0,\n" +
		"    true,\n" +
		"    null\n" +
		"  ],\n" +
		"  \"b\": {\n" +
		"    \"x\": \"<a>\",\n" +
		"    \"y\": 2\n" +
		"  }\n" +
		"}\n"
	assert.Equal(t, expected, string(data))

	again, err := mustParse(t, string(data)).Encode()
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestDocumentEncode_Nil(t *testing.T) {
	var doc sitecontent.Document
	data, err := doc.Encode()
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}

func TestDocumentClone(t *testing.T) {
	doc := mustParse(t, `{"a":{"b":[{"c":1}]}}`)
	clone := doc.Clone()
	assert.Equal(t, doc, clone)

	clone["a"].(map[string]interface{})["b"].([]interface{})[0].(map[string]interface{})["c"] = "changed"
	clone["new"] = true

	assert.Equal(t, mustParse(t, `{"a":{"b":[{"c":1}]}}`), doc)
}

func TestDocumentSections(t *testing.T) {
	doc := mustParse(t, `{"welcome":1,"hero":2,"about":3}`)
	assert.Equal(t, []string{"about", "hero", "welcome"}, doc.Sections())
	assert.Empty(t, sitecontent.Document{}.Sections())
}
