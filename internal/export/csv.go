package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Spok95/group-grader/internal/models"
	"github.com/Spok95/group-grader/internal/service"
)

var csvHeader = []string{"Оценивающий", "Оцениваемая команда", "Группа", "Общая оценка", "Дата оценки"}

const dateLayout = "02.01.2006"

// WriteCSV пишет оценки периода: одна строка на оценку, текст и дата всегда в
// кавычках, балл без кавычек с двумя знаками. Даты — в loc.
func WriteCSV(w io.Writer, rows []models.EvaluationRow, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(csvHeader, ",") + "\n"); err != nil {
		return err
	}
	for _, r := range rows {
		line := strings.Join([]string{
			quote(r.EvaluatorName),
			quote(r.TeamName),
			quote(r.GroupName),
			strconv.FormatFloat(r.TotalScore, 'f', 2, 64),
			quote(r.CreatedAt.In(loc).Format(dateLayout)),
		}, ",")
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteReportCSV — WriteCSV по готовому отчёту.
func WriteReportCSV(w io.Writer, rep service.PeriodReport, loc *time.Location) error {
	return WriteCSV(w, rep.Evaluations, loc)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ReportFilename: report-<период>-<YYYY-MM-DD>.<ext>
func ReportFilename(periodName string, at time.Time, ext string) string {
	name := strings.Join(strings.Fields(periodName), "_")
	if name == "" {
		name = "period"
	}
	return sanitizeFileName(fmt.Sprintf("report-%s-%s.%s", name, at.Format("2006-01-02"), ext))
}
