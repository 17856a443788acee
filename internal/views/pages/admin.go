// Package pages assembles the admin screens from layout and components.
package pages

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"recipebox/internal/views/components"
	"recipebox/internal/views/layout"
)

const logoutURL = "/admin/logout/"

// DashboardData is everything the admin overview shows.
type DashboardData struct {
	StaffEmail  string
	Users       int64
	Recipes     int64
	Tags        int64
	Ingredients int64
	Rows        []components.UserRow
}

// AdminLogin renders the full sign-in page.
func AdminLogin(message, email string) templ.Component {
	return layout.Layout("Log in | recipebox administration", nil, AdminLoginPartial(message, email))
}

// AdminLoginPartial renders only the sign-in form.
func AdminLoginPartial(message, email string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := `<section id="admin-login"><h1>Log in</h1>`
		if message != "" {
			out += `<p class="errornote" role="alert">` + templ.EscapeString(message) + `</p>`
		}
		out += `<form method="post" action="/admin/login/">` +
			`<label for="id_email">Email</label>` +
			`<input type="email" name="email" id="id_email" required value="` + templ.EscapeString(email) + `">` +
			`<label for="id_password">Password</label>` +
			`<input type="password" name="password" id="id_password" required>` +
			`<button type="submit">Log in</button></form></section>`
		_, err := io.WriteString(w, out)
		return err
	})
}

// AdminDashboard renders the overview page for a signed-in staff member.
func AdminDashboard(data DashboardData) templ.Component {
	nav := &layout.Nav{Email: data.StaffEmail, LogoutURL: logoutURL}
	return layout.Layout("Site administration | recipebox", nav, AdminDashboardPartial(data))
}

// AdminDashboardPartial renders the overview without the document shell.
func AdminDashboardPartial(data DashboardData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<section id="admin-overview"><h1>Site administration</h1><dl class="stats">`); err != nil {
			return err
		}
		for _, card := range []templ.Component{
			components.StatCard("Users", data.Users),
			components.StatCard("Recipes", data.Recipes),
			components.StatCard("Tags", data.Tags),
			components.StatCard("Ingredients", data.Ingredients),
		} {
			if err := card.Render(ctx, w); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</dl><h2>Users</h2>`); err != nil {
			return err
		}
		if err := components.UserTable(data.Rows).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</section>`)
		return err
	})
}
