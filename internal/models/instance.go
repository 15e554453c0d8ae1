package models

import "strings"

// LinkField names one of the two link leaves of a download entry
type LinkField string

const (
	FieldHref   LinkField = "href"   // public-facing reference URL
	FieldPublic LinkField = "public" // origin URL in the static bucket
)

// Valid reports whether the field is one the fixer may rewrite
func (f LinkField) Valid() bool {
	return f == FieldHref || f == FieldPublic
}

// Download is a single entry of an instance's downloads map
type Download struct {
	HRef    string `json:"href,omitempty" bson:"href,omitempty"`
	Private string `json:"private,omitempty" bson:"private,omitempty"`
	Public  string `json:"public,omitempty" bson:"public,omitempty"`
	Size    string `json:"size,omitempty" bson:"size,omitempty"`
}

// Link returns the value of the given link field
func (d Download) Link(field LinkField) string {
	switch field {
	case FieldHref:
		return d.HRef
	case FieldPublic:
		return d.Public
	}
	return ""
}

// Instance is a dataset instance document as stored in the instances collection
type Instance struct {
	ID        string              `json:"id" bson:"id"`
	State     string              `json:"state,omitempty" bson:"state,omitempty"`
	Downloads map[string]Download `json:"downloads,omitempty" bson:"downloads,omitempty"`
}

// FieldPath returns the dotted document path of a link, e.g. downloads.csv.href
func FieldPath(format string, field LinkField) string {
	return "downloads." + format + "." + string(field)
}

// SplitFieldPath splits a dotted document path into its segments
func SplitFieldPath(path string) []string {
	return strings.Split(path, ".")
}
