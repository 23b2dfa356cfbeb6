package model

import "time"

// FieldType is the kind of input a field collects.
type FieldType string

const (
	FieldSignature FieldType = "signature"
	FieldDate      FieldType = "date"
	FieldText      FieldType = "text"
	FieldInitial   FieldType = "initial"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldSignature, FieldDate, FieldText, FieldInitial:
		return true
	}
	return false
}

// Presentation defaults applied when a field is created without hints.
const (
	DefaultFontSize   = 12
	DefaultFontFamily = "Arial"
	DefaultDateFormat = "YYYY-MM-DD"
)

// Field is a placed input region on a page (`document_fields` table). A nil
// SignerID means any signer of the document may fill it.
type Field struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	FieldType  FieldType `json:"field_type"`
	Page       int       `json:"page"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Width      float64   `json:"width"`
	Height     float64   `json:"height"`
	SignerID   *string   `json:"signer_id,omitempty"`
	Value      *string   `json:"value,omitempty"`
	FontSize   int       `json:"font_size"`
	FontFamily string    `json:"font_family"`
	DateFormat string    `json:"date_format"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AssignableTo reports whether signerID may act on the field.
func (f Field) AssignableTo(signerID string) bool {
	return f.SignerID == nil || *f.SignerID == signerID
}
