package notion

import (
	"fmt"
	"time"
)

// PropertyType is the type tag Notion attaches to every property value.
type PropertyType string

const (
	TypeTitle    PropertyType = "title"
	TypeRichText PropertyType = "rich_text"
	TypeNumber   PropertyType = "number"
	TypeSelect   PropertyType = "select"
	TypeURL      PropertyType = "url"
	TypeDate     PropertyType = "date"
)

// Text is the text payload of a rich text item.
type Text struct {
	Content string `json:"content"`
}

// RichText is a single rich text item. Only plain text content is modelled.
type RichText struct {
	Type      string `json:"type,omitempty"`
	Text      *Text  `json:"text,omitempty"`
	PlainText string `json:"plain_text,omitempty"`
}

// SelectOption names an option of a select column.
type SelectOption struct {
	Name string `json:"name"`
}

// DateValue is the value of a date column.
type DateValue struct {
	Start string  `json:"start"`
	End   *string `json:"end,omitempty"`
}

// PropertyValue is the value of one column on a page. Exactly one of the
// typed fields is expected to be set, matching Type.
type PropertyValue struct {
	ID       string        `json:"id,omitempty"`
	Type     PropertyType  `json:"type,omitempty"`
	Title    []RichText    `json:"title,omitempty"`
	RichText []RichText    `json:"rich_text,omitempty"`
	Number   *float64      `json:"number,omitempty"`
	Select   *SelectOption `json:"select,omitempty"`
	URL      *string       `json:"url,omitempty"`
	Date     *DateValue    `json:"date,omitempty"`
}

// Properties maps column names to values.
type Properties map[string]PropertyValue

// TitleValue builds a title property.
func TitleValue(content string) PropertyValue {
	return PropertyValue{Type: TypeTitle, Title: []RichText{textItem(content)}}
}

// RichTextValue builds a rich text property.
func RichTextValue(content string) PropertyValue {
	return PropertyValue{Type: TypeRichText, RichText: []RichText{textItem(content)}}
}

// NumberValue builds a number property.
func NumberValue(n float64) PropertyValue {
	return PropertyValue{Type: TypeNumber, Number: &n}
}

// SelectValue builds a select property.
func SelectValue(name string) PropertyValue {
	return PropertyValue{Type: TypeSelect, Select: &SelectOption{Name: name}}
}

// URLValue builds a url property.
func URLValue(u string) PropertyValue {
	return PropertyValue{Type: TypeURL, URL: &u}
}

// DateOnlyValue builds a date property holding only the calendar day of t (UTC).
func DateOnlyValue(t time.Time) PropertyValue {
	return PropertyValue{Type: TypeDate, Date: &DateValue{Start: t.UTC().Format("2006-01-02")}}
}

func textItem(content string) RichText {
	return RichText{Type: "text", Text: &Text{Content: content}}
}

// Page is a row of a database.
type Page struct {
	Object     string     `json:"object"`
	ID         string     `json:"id"`
	URL        string     `json:"url,omitempty"`
	Properties Properties `json:"properties"`
}

// QueryResult is one page of a database query.
type QueryResult struct {
	Results    []Page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// PropertyItem is the response of the page property endpoint for a
// non-paginated property such as a number.
type PropertyItem struct {
	Object string        `json:"object"`
	ID     string        `json:"id"`
	Type   PropertyType  `json:"type"`
	Number *float64      `json:"number"`
	Select *SelectOption `json:"select,omitempty"`
	URL    *string       `json:"url,omitempty"`
}

// APIError is a non-2xx response from the Notion API.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Notion API error: %d %s - %s", e.Status, e.Code, e.Message)
}
