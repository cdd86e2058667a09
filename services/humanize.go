package services

import (
	"strings"

	"document-extraction-platform/models"
)

// kindMessages maps validator error kinds to simplified user-facing text.
var kindMessages = map[string]string{
	models.ErrMissing:     "This field was not found in the document",
	models.ErrWrongType:   "The extracted value has the wrong type",
	models.ErrBadEnum:     "The extracted value is not one of the allowed options",
	models.ErrBadDate:     "The extracted value is not a valid date",
	models.ErrNotAList:    "Expected a list of entries",
	models.ErrUnknownItem: "The document produced an entry the schema does not know",
}

// kindTips carries one short tips list per distinct error kind.
var kindTips = map[string][]string{
	models.ErrMissing:   {"Check that the document actually contains this value", "Mark the field optional if it is not always present"},
	models.ErrWrongType: {"Add a hint to the field description about the expected format"},
	models.ErrBadEnum:   {"Extend the allowed enum values if the document uses different wording"},
	models.ErrBadDate:   {"Dates must be ISO formatted; add an instruction asking the model to normalize dates"},
	models.ErrNotAList:  {"Nested schemas require the model to return an item list; retry usually resolves this"},
}

// HumanizeErrors converts raw validator errors into user-facing messages
// with title-cased field names and per-kind tips.
func HumanizeErrors(errs []models.FieldError) []models.HumanError {
	out := make([]models.HumanError, 0, len(errs))
	for _, e := range errs {
		msg, ok := kindMessages[e.Kind]
		if !ok {
			msg = e.Message
		}
		he := models.HumanError{
			Field:            titleCaseField(e.Path),
			Message:          msg,
			TechnicalDetails: e.Path + ": " + e.Message,
			Tips:             kindTips[e.Kind],
		}
		if e.Row >= 0 {
			row := e.Row
			he.Row = &row
		}
		out = append(out, he)
	}
	return out
}

// titleCaseField turns "item[2].issue_date" into "Issue Date".
func titleCaseField(path string) string {
	field := path
	if i := strings.LastIndex(path, "."); i >= 0 {
		field = path[i+1:]
	}
	if i := strings.Index(field, "["); i >= 0 {
		field = field[:i]
	}
	words := strings.Split(field, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// SummarizeErrors joins humanized errors into a single message line for the
// terminal result event.
func SummarizeErrors(errs []models.HumanError) string {
	if len(errs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return strings.Join(parts, "; ")
}
