package core

import "strings"

// Category groups invoices by the kind of work billed, judged from item descriptions.
type Category struct {
	Label string `json:"label"`
	Value string `json:"value"` // substring matched against item descriptions
}

// Categories are the history filters; "all" disables filtering.
var Categories = []Category{
	{Label: "All Work", Value: "all"},
	{Label: "Side Wheels", Value: "side-wheels"},
	{Label: "Side Car", Value: "side-car"},
	{Label: "Auto Clutch", Value: "auto clutch"},
	{Label: "Brake & Accelarator", Value: "brake"},
}

func itemText(items []LineItem) string {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = strings.ToLower(it.Description)
	}
	return strings.Join(names, " ")
}

// Classify names the category shown next to an invoice in the history list.
func Classify(items []LineItem) string {
	if items == nil {
		return "Other"
	}
	text := itemText(items)
	switch {
	case strings.Contains(text, "side-wheels") || strings.Contains(text, "side wheels"):
		return "Side Wheels"
	case strings.Contains(text, "side-car") || strings.Contains(text, "side car"):
		return "Side Car"
	case strings.Contains(text, "auto clutch"):
		return "Auto Clutch"
	case strings.Contains(text, "brake") || strings.Contains(text, "accelarator"):
		return "Brake & Accelarator"
	}
	return "Modifications"
}

// MatchesCategory reports whether an invoice belongs under a history filter value.
func MatchesCategory(items []LineItem, value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || value == "all" {
		return true
	}
	return strings.Contains(itemText(items), value)
}
