// Package components holds the reusable admin page fragments.
package components

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// StatCard renders a single labelled figure.
func StatCard(label string, value int64) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<div class="stat-card"><dt>`+templ.EscapeString(label)+
			`</dt><dd>`+strconv.FormatInt(value, 10)+`</dd></div>`)
		return err
	})
}

// UserRow is one line of the user table.
type UserRow struct {
	ID          uint
	Email       string
	Name        string
	Active      bool
	Staff       bool
	Superuser   bool
	Recipes     int64
	JoinedOnUTC string
}

// UserTable lists accounts with their flags.
func UserTable(rows []UserRow) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<table class="user-table"><thead><tr><th>Email</th><th>Name</th><th>Active</th>` +
			`<th>Staff</th><th>Superuser</th><th>Recipes</th><th>Joined</th></tr></thead><tbody>`)
		if len(rows) == 0 {
			b.WriteString(`<tr><td colspan="7">No users yet.</td></tr>`)
		}
		for _, row := range rows {
			b.WriteString(`<tr data-user-id="` + strconv.FormatUint(uint64(row.ID), 10) + `">`)
			b.WriteString(`<td>` + templ.EscapeString(row.Email) + `</td>`)
			b.WriteString(`<td>` + templ.EscapeString(row.Name) + `</td>`)
			b.WriteString(`<td>` + flag(row.Active) + `</td>`)
			b.WriteString(`<td>` + flag(row.Staff) + `</td>`)
			b.WriteString(`<td>` + flag(row.Superuser) + `</td>`)
			b.WriteString(`<td>` + strconv.FormatInt(row.Recipes, 10) + `</td>`)
			b.WriteString(`<td>` + templ.EscapeString(row.JoinedOnUTC) + `</td></tr>`)
		}
		b.WriteString(`</tbody></table>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func flag(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
