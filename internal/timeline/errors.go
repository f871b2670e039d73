package timeline

import (
	"fmt"
	"strings"
)

// MalformedDocumentError reports a document that matches neither schema
// generation or fails to decode.
type MalformedDocumentError struct {
	Path  string
	Field string
	Err   error
}

func (e *MalformedDocumentError) Error() string {
	var b strings.Builder
	b.WriteString("malformed timeline document")
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %s)", e.Field)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *MalformedDocumentError) Unwrap() error { return e.Err }

// MissingAssetError reports a referenced media file that does not exist.
type MissingAssetError struct {
	Path     string
	Field    string
	Optional bool
	Err      error
}

func (e *MissingAssetError) Error() string {
	kind := "required"
	if e.Optional {
		kind = "optional"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s asset %s: %v", kind, e.Field, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s asset not found: %s", kind, e.Field, e.Path)
}

func (e *MissingAssetError) Unwrap() error { return e.Err }
