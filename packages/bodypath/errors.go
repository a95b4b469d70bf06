package bodypath

import "fmt"

// Reason classifies why a path did not resolve.
type Reason string

const (
	ReasonMissingField    Reason = "missing_field"
	ReasonIndexOutOfRange Reason = "index_out_of_range"
	ReasonTypeMismatch    Reason = "type_mismatch"
	ReasonInvalidJSON     Reason = "invalid_json"
	ReasonBadPath         Reason = "bad_path"
)

// ExtractionError reports a path that does not resolve against a body.
type ExtractionError struct {
	Path   string
	Reason Reason
	// At is the resolved prefix where the walk stopped, such as "$.data".
	At     string
	Detail string
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extract %q: %s", e.Path, e.Reason)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.At != "" {
		msg += " at " + e.At
	}
	return msg
}
