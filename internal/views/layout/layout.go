// Package layout provides the HTML document shell of the admin pages.
package layout

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Nav describes the signed-in staff member shown in the header.
type Nav struct {
	Email     string
	LogoutURL string
}

// Layout wraps content in a full HTML document. A nil nav renders the header
// without the sign-out form.
func Layout(title string, nav *Nav, content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1"><title>`+
			templ.EscapeString(title)+`</title></head><body class="`+bodyClass(nav != nil)+`">`); err != nil {
			return err
		}
		if err := header(nav).Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<main id="admin-content">`); err != nil {
			return err
		}
		if content != nil {
			if err := content.Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

func header(nav *Nav) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := `<header class="admin-header"><a href="/admin/">recipebox administration</a>`
		if nav != nil {
			out += `<span class="admin-user">` + templ.EscapeString(nav.Email) + `</span>` +
				`<form method="post" action="` + templ.EscapeString(nav.LogoutURL) + `">` +
				`<button type="submit">Log out</button></form>`
		}
		out += `</header>`
		_, err := io.WriteString(w, out)
		return err
	})
}

func bodyClass(signedIn bool) string {
	if signedIn {
		return "admin signed-in"
	}
	return "admin"
}
