package export

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	minColWidth = 10
	maxColWidth = 60
	// формат баллов и средних
	scoreFormat = "0.00"
)

// sheetStyles — стили книги, создаются один раз на файл.
type sheetStyles struct {
	header int
	score  int
}

func newSheetStyles(f *excelize.File) (sheetStyles, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
		Alignment: &excelize.Alignment{Vertical: "center", WrapText: true},
	})
	if err != nil {
		return sheetStyles{}, fmt.Errorf("header style: %w", err)
	}
	format := scoreFormat
	score, err := f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return sheetStyles{}, fmt.Errorf("score style: %w", err)
	}
	return sheetStyles{header: header, score: score}, nil
}

// formatSheet оформляет лист по его спецификации: шапка, закреплённая первая
// строка, автофильтр, формат дробных ячеек и ширины по содержимому.
func formatSheet(f *excelize.File, st sheetStyles, s sheetSpec) error {
	cols := len(s.Header)
	if cols == 0 {
		return nil
	}
	last := columnName(cols)
	if err := f.SetCellStyle(s.Title, "A1", last+"1", st.header); err != nil {
		return err
	}
	if err := f.SetPanes(s.Title, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return err
	}
	if err := f.AutoFilter(s.Title, "A1:"+last+"1", nil); err != nil {
		return err
	}

	widths := make([]float64, cols)
	for c, h := range s.Header {
		// запас под кнопку фильтра
		widths[c] = float64(visualLen(h)) + 3
	}
	for r, row := range s.Rows {
		for c := 0; c < cols && c < len(row); c++ {
			var text string
			switch v := row[c].(type) {
			case float64:
				cell := fmt.Sprintf("%s%d", columnName(c+1), r+2)
				if err := f.SetCellStyle(s.Title, cell, cell, st.score); err != nil {
					return err
				}
				text = fmt.Sprintf("%.2f", v)
			default:
				text = fmt.Sprint(v)
			}
			// кириллица шире латиницы
			if w := float64(visualLen(text)) * 1.1; w > widths[c] {
				widths[c] = w
			}
		}
	}
	for c := 0; c < cols; c++ {
		col := columnName(c + 1)
		w := min(max(widths[c], minColWidth), maxColWidth)
		if err := f.SetColWidth(s.Title, col, col, w); err != nil {
			return err
		}
	}
	return nil
}

// columnName: 1 -> A, 27 -> AA.
func columnName(n int) string {
	name, err := excelize.ColumnNumberToName(n)
	if err != nil {
		return "A"
	}
	return name
}

// visualLen — длина в символах, таб за четыре.
func visualLen(s string) int {
	n := 0
	for _, r := range s {
		if r == '\t' {
			n += 4
		} else {
			n++
		}
	}
	return n
}

var invalidFileRe = regexp.MustCompile(`[\\/:*?"<>|]+`)

func sanitizeFileName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return invalidFileRe.ReplaceAllString(s, "_")
}
