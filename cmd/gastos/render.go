package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"gastos/internal/core"
	"gastos/internal/dashboard"
	"gastos/internal/remote"
)

type styles struct {
	Header   lipgloss.Style
	Muted    lipgloss.Style
	Error    lipgloss.Style
	Summary  lipgloss.Style
	Selected lipgloss.Style
	Budget   map[core.BudgetLevel]lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Header:   lipgloss.NewStyle().Bold(true),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("#828282")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("#ff0000")).Bold(true),
		Summary:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		Selected: lipgloss.NewStyle().Foreground(lipgloss.Color("#d29b1d")),
		Budget: map[core.BudgetLevel]lipgloss.Style{
			core.BudgetOK:      lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff00")),
			core.BudgetWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("#d29b1d")),
			core.BudgetDanger:  lipgloss.NewStyle().Foreground(lipgloss.Color("#ff0000")),
		},
	}
}

// table aligns rows with tabwriter. Styling is applied outside the table so
// escape codes never skew column widths.
func table(rows [][]string) string {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
	return strings.TrimRight(buf.String(), "\n")
}

func render(w io.Writer, v dashboard.View) {
	st := defaultStyles()
	if v.Critical != nil {
		fmt.Fprintln(w, st.Error.Render("Error: "+v.Critical.Message))
		fmt.Fprintln(w, st.Muted.Render("Vuelve a ejecutar el comando para reintentar."))
		return
	}

	sections := []string{
		categoriesView(st, v),
		expensesView(st, v),
		summaryView(st, v),
	}
	fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func categoriesView(st styles, v dashboard.View) string {
	header := st.Header.Render(fmt.Sprintf("CATEGORÍAS (%d)", v.TotalCategories))
	if len(v.Categories) == 0 {
		return header + "\n" + st.Muted.Render("No hay categorías") + "\n"
	}

	rows := make([][]string, 0, len(v.Categories))
	for _, c := range v.Categories {
		marker := " "
		if v.SelectedCategory != nil && v.SelectedCategory.ID == c.ID {
			marker = "*"
		}
		count := ""
		if c.ExpenseCount != nil {
			count = fmt.Sprintf("%d gastos", *c.ExpenseCount)
		}
		rows = append(rows, []string{marker, c.ID, c.Nombre, count})
	}
	body := table(rows)
	if v.SelectedCategory != nil {
		body += "\n" + st.Selected.Render("Filtrando por "+v.SelectedCategory.Nombre)
	}
	return header + "\n" + body + "\n"
}

func expensesView(st styles, v dashboard.View) string {
	f := v.Filter
	header := st.Header.Render(fmt.Sprintf("GASTOS página %d de %d, %d en total, orden %s %s",
		f.Page, max(v.TotalPages, 1), v.Total, f.SortBy, f.SortOrder))
	if f.Search != "" {
		header += "\n" + st.Muted.Render(fmt.Sprintf("búsqueda: %q", f.Search))
	}
	if len(v.Expenses) == 0 {
		return header + "\n" + st.Muted.Render("No hay gastos") + "\n"
	}

	rows := make([][]string, 0, len(v.Expenses))
	for _, e := range v.Expenses {
		categoria := e.CategoriaID
		if e.Categoria != nil {
			categoria = e.Categoria.Nombre
		}
		rows = append(rows, []string{
			e.ID,
			e.FechaHora.Local().Format("2006-01-02 15:04"),
			e.Descripcion,
			categoria,
			core.FormatAmount(e.Monto),
		})
	}
	return header + "\n" + table(rows) + "\n"
}

func summaryView(st styles, v dashboard.View) string {
	s := v.Stats
	rows := [][]string{
		{"Gastos cargados", fmt.Sprintf("%d", s.LoadedCount)},
		{"Total cargado", core.FormatAmount(s.TotalLoaded)},
		{"Este mes", core.FormatAmount(s.CurrentMonthTotal)},
		{fmt.Sprintf("Promedio diario (%d días)", core.TrailingWindowDays), core.FormatAmount(s.TrailingDailyAverage)},
		{"Categorías", fmt.Sprintf("%d", v.TotalCategories)},
	}
	body := table(rows)
	if b := v.Budget; b != nil {
		line := fmt.Sprintf("Presupuesto: %s de %s (%s%%)",
			core.FormatAmount(b.Spent), core.FormatAmount(b.Limit), b.Percent.String())
		body += "\n" + st.Budget[b.Level].Render(line)
	}
	return st.Summary.Render(body)
}

func renderCategoryPage(w io.Writer, p remote.CategoryPage) {
	st := defaultStyles()
	fmt.Fprintln(w, st.Header.Render(fmt.Sprintf("CATEGORÍAS página %d de %d, %d en total",
		p.Page, max(p.TotalPages, 1), p.Total)))
	if len(p.Items) == 0 {
		fmt.Fprintln(w, st.Muted.Render("No hay categorías"))
		return
	}
	rows := make([][]string, 0, len(p.Items))
	for _, c := range p.Items {
		count := ""
		if c.ExpenseCount != nil {
			count = fmt.Sprintf("%d gastos", *c.ExpenseCount)
		}
		rows = append(rows, []string{c.ID, c.Nombre, count})
	}
	fmt.Fprintln(w, table(rows))
}
