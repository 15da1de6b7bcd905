package commands

import (
	"encoding/json"
	"os"
	"strings"

	"platonus-notifier/internal/service"

	"github.com/jedib0t/go-pretty/v6/table"
)

func printResponse(res service.NotificationResponse, asJson bool) error {
	if asJson {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(res)
	}

	studentId := "(absent)"
	if res.StudentId != nil {
		studentId = *res.StudentId
	}

	t := newTable()
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"IIN", res.Iin})
	t.AppendRow(table.Row{"FIO", res.Fio})
	t.AppendRow(table.Row{"Student id", studentId})
	t.AppendRow(table.Row{"Row", strings.Join(res.Row, " | ")})
	t.AppendRow(table.Row{"Detail page", len(res.Html)})
	t.Render()
	return nil
}

func writeHtml(path string, res service.NotificationResponse) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(res.Html), 0644)
}
