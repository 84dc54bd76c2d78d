package webui

import "strings"

// Category is the severity of a flash message. It maps onto the
// alert-<category> CSS class.
type Category string

const (
	CategorySuccess Category = "success"
	CategoryError   Category = "error"
	CategoryInfo    Category = "info"
)

const classPrefix = "alert-"

// ParseCategory maps the categories used by the server (including the
// "danger" and "warning" aliases) onto the three rendered ones.
func ParseCategory(s string) Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "success":
		return CategorySuccess
	case "error", "danger", "warning":
		return CategoryError
	default:
		return CategoryInfo
	}
}

// CategoryFromClass finds the alert-<category> token in a class attribute.
func CategoryFromClass(class string) Category {
	for _, token := range strings.Fields(class) {
		if c, ok := strings.CutPrefix(token, classPrefix); ok {
			return ParseCategory(c)
		}
	}
	return CategoryInfo
}

// Class is the CSS class rendered on an alert of this category.
func (c Category) Class() string {
	return classPrefix + string(c)
}
