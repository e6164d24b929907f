// Package plan reads study-plan tasks from markdown files.
//
// A plan file holds blocks separated by a line containing only "---":
//
//	ID: chem-04
//	S: Chemistry
//	T: Alkenes and alkynes
//	D: 2026-03-02
//	P: high
//
// Title lines may continue on the following lines. A new ID: line also starts
// a new task.
package plan

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/studyplan/internal/domain"
	"github.com/conorfennell/studyplan/internal/fingerprint"
)

const (
	idPrefix       = "ID:"
	subjectPrefix  = "S:"
	titlePrefix    = "T:"
	datePrefix     = "D:"
	priorityPrefix = "P:"

	separator  = "---"
	dateLayout = "2006-01-02"
)

var prefixes = []string{idPrefix, subjectPrefix, titlePrefix, datePrefix, priorityPrefix}

type state int

const (
	seeking state = iota
	readingTitle
)

// block collects the raw fields of one task.
type block struct {
	line     int
	id       string
	subject  string
	title    []string
	date     string
	priority string
}

func (b *block) empty() bool { return b.line == 0 }

func (b *block) build(loc *time.Location) (domain.PlanTask, error) {
	task := domain.PlanTask{
		SourceTaskID: b.id,
		Subject:      b.subject,
		Title:        strings.TrimSpace(strings.Join(b.title, "\n")),
		Priority:     domain.Priority(strings.ToLower(b.priority)),
	}

	if b.date == "" {
		return task, &domain.ValidationError{Field: "Date", Reason: "is required"}
	}
	date, err := parseDate(b.date, loc)
	if err != nil {
		return task, &domain.ValidationError{Field: "Date", Reason: fmt.Sprintf("cannot parse %q", b.date)}
	}
	task.Date = date

	if task.SourceTaskID == "" {
		task.SourceTaskID = fingerprint.TaskID(task)
	}
	if err := domain.Validate(&task); err != nil {
		return task, err
	}
	return task, nil
}

// ParseFile reads a file from the given path and extracts all tasks.
func ParseFile(path string, loc *time.Location) ([]domain.PlanTask, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file, loc)
}

// Parse extracts all tasks from r. Dates without a zone are midnight in loc.
// Malformed blocks are reported in the joined error while the well-formed
// tasks are still returned.
func Parse(r io.Reader, loc *time.Location) ([]domain.PlanTask, error) {
	if loc == nil {
		loc = time.UTC
	}

	scanner := bufio.NewScanner(r)
	var (
		tasks        []domain.PlanTask
		errs         []error
		current      block
		currentState = seeking
		lineNo       int
	)

	finishTask := func() {
		if !current.empty() {
			task, err := current.build(loc)
			if err != nil {
				errs = append(errs, fmt.Errorf("task at line %d: %w", current.line, err))
			} else {
				tasks = append(tasks, task)
			}
		}
		current = block{}
		currentState = seeking
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if strings.TrimSpace(line) == separator {
			finishTask()
			continue
		}

		prefix, value, ok := cutPrefix(line)
		if !ok {
			if currentState == readingTitle {
				current.title = append(current.title, line)
			}
			continue
		}

		if prefix == idPrefix && !current.empty() { // An ID always starts a new task
			finishTask()
		}
		if current.empty() {
			current.line = lineNo
		}

		currentState = seeking
		switch prefix {
		case idPrefix:
			current.id = value
		case subjectPrefix:
			current.subject = value
		case titlePrefix:
			current.title = []string{value}
			currentState = readingTitle
		case datePrefix:
			current.date = value
		case priorityPrefix:
			current.priority = value
		}
	}

	finishTask() // Finish the very last task in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return tasks, errors.Join(errs...)
}

// ParseDir parses every .md file under dir. Files that fail are reported in
// the joined error and do not stop the walk.
func ParseDir(dir string, loc *time.Location) ([]domain.PlanTask, error) {
	var (
		tasks []domain.PlanTask
		errs  []error
	)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		fileTasks, parseErr := ParseFile(path, loc)
		if parseErr != nil {
			errs = append(errs, fmt.Errorf("parsing %s: %w", path, parseErr))
		}
		tasks = append(tasks, fileTasks...)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, walkErr)
	}

	return tasks, errors.Join(errs...)
}

func cutPrefix(line string) (prefix, value string, ok bool) {
	for _, p := range prefixes {
		if rest, found := strings.CutPrefix(line, p); found {
			return p, strings.TrimSpace(rest), true
		}
	}
	return "", "", false
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
