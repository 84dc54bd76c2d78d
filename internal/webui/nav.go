package webui

const (
	LogoutURL    = "/auth/logout"
	LogoutPrompt = "Are you sure you want to logout?"
)

type Location interface {
	Assign(url string)
}

type Prompter interface {
	Confirm(message string) bool
}

func NavigateTo(loc Location, url string) {
	loc.Assign(url)
}

// Logout redirects to the logout endpoint once the user confirms.
func Logout(loc Location, prompt Prompter) {
	if !prompt.Confirm(LogoutPrompt) {
		return
	}
	loc.Assign(LogoutURL)
}
