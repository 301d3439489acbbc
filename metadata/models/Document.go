package models

import "encoding/json"

// DocumentCodec marshals the opaque detail payloads carried on status and
// folder rows. The store treats payloads as text; callers choose the format.
type DocumentCodec interface {
	Marshal(doc interface{}) (string, error)
	Unmarshal(text string, doc interface{}) error
}

// JSONCodec is the default DocumentCodec.
type JSONCodec struct{}

// Marshal encodes doc as JSON text.
func (JSONCodec) Marshal(doc interface{}) (string, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Unmarshal decodes JSON text into doc.
func (JSONCodec) Unmarshal(text string, doc interface{}) error {
	return json.Unmarshal([]byte(text), doc)
}
