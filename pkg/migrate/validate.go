package migrate

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

var migrationName = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

const gooseDirective = "-- +goose "

// ValidateDir runs ValidateFS against a directory on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS checks every .sql file at the root of files: the
// YYYYMMDDHHMMSS_name.sql filename, a version no other file uses, and goose
// directives that open Up before Down and pair each StatementBegin with a
// StatementEnd inside the same section. All problems are reported together.
func ValidateFS(files fs.FS) error {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	var errs error
	seen := map[string]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		match := migrationName.FindStringSubmatch(name)
		if match == nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: filename must be YYYYMMDDHHMMSS_name.sql", name))
			continue
		}
		if prev, dup := seen[match[1]]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%s: version %s already used by %s", name, match[1], prev))
		}
		seen[match[1]] = name

		body, err := fs.ReadFile(files, name)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if err := checkDirectives(body); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errs
}

func checkDirectives(body []byte) error {
	var (
		section string
		open    int
		sawUp   bool
		sawDown bool
	)
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		directive, ok := strings.CutPrefix(text, gooseDirective)
		if !ok {
			continue
		}
		switch strings.TrimSpace(directive) {
		case "Up":
			if sawUp || sawDown {
				return fmt.Errorf("line %d: Up must come first and only once", line)
			}
			sawUp, section = true, "Up"
		case "Down":
			if !sawUp || sawDown {
				return fmt.Errorf("line %d: Down must follow Up and appear once", line)
			}
			if open > 0 {
				return fmt.Errorf("line %d: Up section ends inside a StatementBegin block", line)
			}
			sawDown, section = true, "Down"
		case "StatementBegin":
			if section == "" || open > 0 {
				return fmt.Errorf("line %d: StatementBegin outside a section or nested", line)
			}
			open++
		case "StatementEnd":
			if open == 0 {
				return fmt.Errorf("line %d: StatementEnd without StatementBegin", line)
			}
			open--
		case "NO TRANSACTION", "ENVSUB ON", "ENVSUB OFF":
		default:
			return fmt.Errorf("line %d: unknown goose directive %q", line, text)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	switch {
	case !sawUp:
		return fmt.Errorf("missing Up section")
	case !sawDown:
		return fmt.Errorf("missing Down section")
	case open > 0:
		return fmt.Errorf("StatementBegin left open at end of file")
	}
	return nil
}
