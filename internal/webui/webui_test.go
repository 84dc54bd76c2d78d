package webui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeLocation struct {
	href    string
	assigns int
}

func (l *fakeLocation) Assign(url string) {
	l.href = url
	l.assigns++
}

type fakePrompt struct {
	answer bool
	asked  string
}

func (p *fakePrompt) Confirm(message string) bool {
	p.asked = message
	return p.answer
}

func TestNavigateTo(t *testing.T) {
	loc := &fakeLocation{href: "/dashboard"}
	NavigateTo(loc, "/foo")
	assert.Equal(t, "/foo", loc.href)
}

func TestLogout_Confirmed(t *testing.T) {
	loc := &fakeLocation{href: "/students"}
	prompt := &fakePrompt{answer: true}

	Logout(loc, prompt)

	assert.Equal(t, "Are you sure you want to logout?", prompt.asked)
	assert.Equal(t, "/auth/logout", loc.href)
}

func TestLogout_Declined(t *testing.T) {
	loc := &fakeLocation{href: "/students"}
	prompt := &fakePrompt{answer: false}

	Logout(loc, prompt)

	assert.Equal(t, LogoutPrompt, prompt.asked)
	assert.Equal(t, "/students", loc.href)
	assert.Zero(t, loc.assigns)
}

func TestParseCategory(t *testing.T) {
	tests := map[string]Category{
		"success": CategorySuccess,
		"error":   CategoryError,
		"danger":  CategoryError,
		"warning": CategoryError,
		"info":    CategoryInfo,
		"message": CategoryInfo,
		"":        CategoryInfo,
		" Error ": CategoryError,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseCategory(in), "ParseCategory(%q)", in)
	}
}

func TestCategoryFromClass(t *testing.T) {
	assert.Equal(t, CategoryError, CategoryFromClass("alert alert-error fade"))
	assert.Equal(t, CategorySuccess, CategoryFromClass("alert-success alert"))
	assert.Equal(t, CategoryInfo, CategoryFromClass("alert"))
	assert.Equal(t, "alert-info", CategoryInfo.Class())
}
