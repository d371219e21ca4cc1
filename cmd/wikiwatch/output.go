package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"wikiwatch/internal/watch"
	"wikiwatch/internal/wikipedia"
)

const (
	formatTable = "table"
	formatYAML  = "yaml"
	formatJSON  = "json"

	timeLayout   = "2006-01-02 15:04"
	defaultWidth = 100
)

type revisionView struct {
	Index     int       `json:"index" yaml:"index"`
	User      string    `json:"user" yaml:"user"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Size      int64     `json:"size" yaml:"size"`
	Seen      bool      `json:"seen" yaml:"seen"`
	Comment   string    `json:"comment" yaml:"comment"`
}

type articleView struct {
	ID           string         `json:"id" yaml:"id"`
	Title        string         `json:"title" yaml:"title"`
	Region       watch.Region   `json:"region" yaml:"region"`
	Added        time.Time      `json:"added" yaml:"added"`
	LastReloaded *time.Time     `json:"last_reloaded,omitempty" yaml:"last_reloaded,omitempty"`
	Unseen       int            `json:"unseen" yaml:"unseen"`
	Total        int            `json:"total" yaml:"total"`
	Notes        string         `json:"notes,omitempty" yaml:"notes,omitempty"`
	Revisions    []revisionView `json:"revisions,omitempty" yaml:"revisions,omitempty"`
}

func newArticleView(a *watch.Article, withRevisions bool) articleView {
	v := articleView{
		ID:     a.ID,
		Title:  a.Name,
		Region: a.Region,
		Added:  a.Added,
		Unseen: a.CountUnseen(),
		Total:  a.CountTotal(),
		Notes:  a.Notes(),
	}
	if lr := a.LastReloaded(); !lr.IsZero() {
		v.LastReloaded = &lr
	}
	if withRevisions {
		for i, r := range a.Chronological() {
			v.Revisions = append(v.Revisions, newRevisionView(i+1, r))
		}
	}
	return v
}

func newRevisionView(index int, r watch.Revision) revisionView {
	return revisionView{
		Index:     index,
		User:      r.User,
		Timestamp: r.Timestamp,
		Size:      r.Size,
		Seen:      r.Seen,
		Comment:   wikipedia.PlainText(r.Comment),
	}
}

func summaryViews(summaries []*watch.ArticleSummary) []articleView {
	views := make([]articleView, 0, len(summaries))
	for _, s := range summaries {
		v := newArticleView(s.Article, false)
		v.Unseen = s.Unseen
		v.Total = s.Total
		views = append(views, v)
	}
	return views
}

func checkFormat(format string) error {
	switch format {
	case formatTable, formatYAML, formatJSON:
		return nil
	default:
		return fmt.Errorf("unknown format %q (want table, yaml or json)", format)
	}
}

// encode writes v as YAML or JSON. Table output is handled by the caller.
func encode(w io.Writer, format string, v any) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// terminalWidth returns the width of stdout, or defaultWidth when stdout is
// not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// writeTable writes rows aligned by display width, so titles such as
// "Zürich" or "東京都" line up. The last column is truncated to fit width.
func writeTable(w io.Writer, width int, headers []string, rows [][]string) error {
	all := append([][]string{headers}, rows...)

	colWidths := make([]int, len(headers))
	for _, row := range all {
		for i := 0; i < len(row) && i < len(colWidths); i++ {
			if cw := runewidth.StringWidth(row[i]); cw > colWidths[i] {
				colWidths[i] = cw
			}
		}
	}

	used := 0
	for _, cw := range colWidths[:len(colWidths)-1] {
		used += cw + 2
	}
	lastMax := width - used
	if lastMax < 10 {
		lastMax = 10
	}

	for _, row := range all {
		var sb strings.Builder
		for i := range headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if i == len(headers)-1 {
				sb.WriteString(runewidth.Truncate(cell, lastMax, "…"))
				break
			}
			sb.WriteString(runewidth.FillRight(cell, colWidths[i]))
			sb.WriteString("  ")
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(sb.String(), " ")); err != nil {
			return err
		}
	}
	return nil
}

func writeArticleTable(w io.Writer, width int, views []articleView) error {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		reloaded := "never"
		if v.LastReloaded != nil {
			reloaded = v.LastReloaded.Local().Format(timeLayout)
		}
		rows = append(rows, []string{
			shortID(v.ID),
			v.Region.Code(),
			strconv.Itoa(v.Unseen),
			strconv.Itoa(v.Total),
			reloaded,
			v.Title,
		})
	}
	return writeTable(w, width, []string{"ID", "REGION", "UNSEEN", "TOTAL", "RELOADED", "TITLE"}, rows)
}

func writeArticleDetail(w io.Writer, width int, v articleView) error {
	reloaded := "never"
	if v.LastReloaded != nil {
		reloaded = v.LastReloaded.Local().Format(timeLayout)
	}
	fmt.Fprintf(w, "%s (%s)\n", v.Title, v.Region.Name())
	fmt.Fprintf(w, "ID:       %s\n", v.ID)
	fmt.Fprintf(w, "Added:    %s\n", v.Added.Local().Format(timeLayout))
	fmt.Fprintf(w, "Reloaded: %s\n", reloaded)
	fmt.Fprintf(w, "Unseen:   %d of %d\n", v.Unseen, v.Total)
	if v.Notes != "" {
		fmt.Fprintf(w, "Notes:    %s\n", v.Notes)
	}
	if len(v.Revisions) == 0 {
		_, err := fmt.Fprintln(w, "\nNo revisions loaded.")
		return err
	}
	fmt.Fprintln(w)
	return writeRevisionTable(w, width, v.Revisions)
}

func writeRevisionTable(w io.Writer, width int, revs []revisionView) error {
	rows := make([][]string, 0, len(revs))
	for _, r := range revs {
		mark := "*"
		if r.Seen {
			mark = ""
		}
		rows = append(rows, []string{
			strconv.Itoa(r.Index),
			mark,
			r.Timestamp.Local().Format(timeLayout),
			r.User,
			strconv.FormatInt(r.Size, 10),
			r.Comment,
		})
	}
	return writeTable(w, width, []string{"#", "NEW", "TIME", "USER", "SIZE", "COMMENT"}, rows)
}

func writeRevisionDetail(w io.Writer, r revisionView) error {
	fmt.Fprintf(w, "User: %s\n", r.User)
	fmt.Fprintf(w, "Time: %s\n", r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "Size: %d\n", r.Size)
	_, err := fmt.Fprintf(w, "\n%s\n", r.Comment)
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
