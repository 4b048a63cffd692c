// Package report renders weighted summaries as plain-text tables.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/MikeSquared-Agency/Prism/internal/scoring"
)

var gradeStyles = map[scoring.Grade]lipgloss.Style{
	scoring.GradeA: lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true),
	scoring.GradeB: lipgloss.NewStyle().Foreground(lipgloss.Color("#1890FF")).Bold(true),
	scoring.GradeC: lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true),
	scoring.GradeD: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true),
}

var headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))

var headers = []string{"Field", "Type", "Compl", "Corr", "Uniq", "Weighted", "Importance", "Grade"}

const gradeCol = 7

var rightAlign = map[int]bool{2: true, 3: true, 4: true, 5: true, 6: true}

type Options struct {
	Color bool
}

// Render writes the field table followed by the table aggregate line.
func Render(w io.Writer, s *scoring.TableSummary, opts Options) error {
	if s == nil {
		_, err := fmt.Fprintln(w, "no analysis loaded")
		return err
	}

	rows := make([][]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		rows = append(rows, []string{
			f.FieldName,
			f.DataType,
			score(f.CompletenessScore),
			score(f.CorrectnessScore),
			score(f.UniquenessScore),
			score(f.WeightedScore),
			percent(f.Importance),
			string(f.QualityGrade),
		})
	}

	var style cellStyler
	if opts.Color {
		style = func(col int, padded string) string {
			if col != gradeCol {
				return padded
			}
			g := scoring.Grade(strings.TrimSpace(padded))
			if st, ok := gradeStyles[g]; ok {
				return st.Render(padded)
			}
			return padded
		}
	}

	lines := formatTable(headers, rows, rightAlign, style)
	if opts.Color && len(lines) > 0 {
		lines[0] = headerStyle.Render(lines[0])
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w, Aggregate(s, opts))
	return err
}

// Aggregate formats the one-line table roll-up.
func Aggregate(s *scoring.TableSummary, opts Options) string {
	t := s.Table
	grade := string(t.QualityGrade)
	if st, ok := gradeStyles[t.QualityGrade]; ok && opts.Color {
		grade = st.Render(grade)
	}
	name := s.Name
	if name == "" {
		name = "table"
	}
	return fmt.Sprintf("%s: weighted %s grade %s (completeness %s, correctness %s, uniqueness %s, %d fields)",
		name, score(t.WeightedScore), grade,
		score(t.CompletenessScore), score(t.CorrectnessScore), score(t.UniquenessScore), t.FieldCount)
}

func score(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

// ShouldUseColor reports whether w is a terminal and NO_COLOR is unset.
func ShouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
