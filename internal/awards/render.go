package awards

import (
	"strings"
	"time"

	"github.com/angelmondragon/lms-engagements/pkg/config"
	"github.com/angelmondragon/lms-engagements/pkg/db/models"
)

const dateLayout = "January 2, 2006"

// renderer replaces merge codes such as {user_login} and {site_title}.
type renderer struct {
	site config.SiteConfig
}

func (r renderer) render(text string, user *models.User, at time.Time) string {
	if !strings.Contains(text, "{") {
		return text
	}
	login := user.Login
	if login == "" {
		login = user.Email
	}
	displayName := user.DisplayName
	if displayName == "" {
		displayName = login
	}
	return strings.NewReplacer(
		"{user_login}", login,
		"{user_email}", user.Email,
		"{email_address}", user.Email,
		"{display_name}", displayName,
		"{site_title}", r.site.Title,
		"{site_url}", r.site.URL,
		"{current_date}", at.Format(dateLayout),
	).Replace(text)
}
