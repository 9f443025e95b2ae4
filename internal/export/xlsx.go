package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/group-grader/internal/service"
)

type sheetSpec struct {
	Title  string
	Header []string
	Rows   [][]any
}

const (
	evaluationsSheet = "Evaluations"
	summarySheet     = "Summary"
	maxSheetName     = 31
)

var standingsHeader = []string{"Место", "Команда", "Средний балл", "Оценок", "Активна"}

// BuildWorkbook собирает книгу отчёта: по листу рейтинга на группу, лист
// Evaluations со строками CSV и лист Summary со статистикой периода.
func BuildWorkbook(rep service.PeriodReport, loc *time.Location) (*excelize.File, error) {
	if loc == nil {
		loc = time.UTC
	}
	var sheets []sheetSpec
	used := map[string]bool{}
	for _, g := range rep.Groups {
		s := sheetSpec{Title: uniqueSheetName(g.GroupName, used), Header: standingsHeader}
		for _, t := range g.Teams {
			s.Rows = append(s.Rows, []any{t.Rank, t.TeamName, t.Average, t.Evaluations, yesNo(t.IsActive)})
		}
		sheets = append(sheets, s)
	}

	ev := sheetSpec{Title: uniqueSheetName(evaluationsSheet, used), Header: csvHeader}
	for _, r := range rep.Evaluations {
		ev.Rows = append(ev.Rows, []any{r.EvaluatorName, r.TeamName, r.GroupName, r.TotalScore, r.CreatedAt.In(loc).Format(dateLayout)})
	}
	sheets = append(sheets, ev)

	p := rep.Period
	sheets = append(sheets, sheetSpec{
		Title:  uniqueSheetName(summarySheet, used),
		Header: []string{"Показатель", "Значение"},
		Rows: [][]any{
			{"Период", p.Name},
			{"Начало", p.StartDate.In(loc).Format(dateLayout)},
			{"Окончание", p.EndDate.In(loc).Format(dateLayout)},
			{"Статус", string(p.Status)},
			{"Команд", rep.Stats.TotalTeams},
			{"Оценок", rep.Stats.TotalEvaluations},
			{"Средний балл", rep.Stats.AverageScore},
			{"Сформирован", rep.GeneratedAt.In(loc).Format("02.01.2006 15:04")},
		},
	})
	return newWorkbook(sheets)
}

// WriteXLSX пишет книгу отчёта в w.
func WriteXLSX(w io.Writer, rep service.PeriodReport, loc *time.Location) error {
	f, err := BuildWorkbook(rep, loc)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return f.Write(w)
}

func newWorkbook(sheets []sheetSpec) (*excelize.File, error) {
	f := excelize.NewFile()
	styles, err := newSheetStyles(f)
	if err != nil {
		return nil, err
	}
	for i, s := range sheets {
		name := s.Title
		if i == 0 {
			// стандартный Sheet1 переименовываем под первый лист
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("new sheet %q: %w", name, err)
		}
		if err := f.SetSheetRow(name, "A1", &s.Header); err != nil {
			return nil, fmt.Errorf("header %q: %w", name, err)
		}
		for r, row := range s.Rows {
			cell := fmt.Sprintf("A%d", r+2)
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				return nil, fmt.Errorf("set row %s!%s: %w", name, cell, err)
			}
		}
		if err := formatSheet(f, styles, s); err != nil {
			return nil, fmt.Errorf("format %q: %w", name, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

var sheetNameReplacer = strings.NewReplacer(`\`, "_", "/", "_", "?", "_", "*", "_", "[", "(", "]", ")", ":", "_")

// uniqueSheetName: Excel запрещает часть символов, длину > 31 и повторы без учёта регистра.
func uniqueSheetName(name string, used map[string]bool) string {
	base := strings.TrimSpace(sheetNameReplacer.Replace(name))
	if base == "" {
		base = "Группа"
	}
	base = truncateRunes(base, maxSheetName)
	candidate := base
	for i := 2; used[strings.ToLower(candidate)]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		candidate = truncateRunes(base, maxSheetName-len([]rune(suffix))) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func yesNo(b bool) string {
	if b {
		return "да"
	}
	return "нет"
}
