// Package relatorios is the reports module. It ships as source and is run by
// the script runtime, so it may only import whitelisted standard packages.
package relatorios

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

var rangeLabels = map[string]string{
	"":    "Todo o período",
	"7d":  "Últimos 7 dias",
	"30d": "Últimos 30 dias",
	"90d": "Últimos 90 dias",
}

// New returns the render function of one module instance.
func New() func(params map[string]string) (string, error) {
	renders := 0
	return func(params map[string]string) (string, error) {
		renders++

		label, ok := rangeLabels[params["date_range"]]
		if !ok {
			return "", fmt.Errorf("unknown date range %q", params["date_range"])
		}

		uploads, _ := strconv.Atoi(params["total_uploads"])
		records, _ := strconv.Atoi(params["total_records"])
		rate, _ := strconv.ParseFloat(params["success_rate"], 64)

		var b strings.Builder
		b.WriteString(`<section class="module relatorios">`)
		fmt.Fprintf(&b, `<h2>%s</h2>`, html.EscapeString(params["title"]))
		fmt.Fprintf(&b, `<p class="periodo">%s</p>`, html.EscapeString(label))
		if unit := params["unit_id"]; unit != "" {
			fmt.Fprintf(&b, `<p class="unidade">Unidade: %s</p>`, html.EscapeString(unit))
		}
		b.WriteString(`<dl>`)
		fmt.Fprintf(&b, `<dt>Uploads</dt><dd>%d</dd>`, uploads)
		fmt.Fprintf(&b, `<dt>Registros</dt><dd>%d</dd>`, records)
		fmt.Fprintf(&b, `<dt>Taxa de sucesso</dt><dd>%.1f%%</dd>`, rate)
		if uploads > 0 {
			fmt.Fprintf(&b, `<dt>Registros por upload</dt><dd>%.1f</dd>`, float64(records)/float64(uploads))
		}
		b.WriteString(`</dl>`)
		fmt.Fprintf(&b, `<!-- render %d -->`, renders)
		b.WriteString(`</section>`)
		return b.String(), nil
	}
}
