package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// The same migration files run under both goose dialects, so constructs
// that only one engine accepts are rejected up front.
var dialectOnly = []struct {
	keyword string
	engine  string
}{
	{"AUTOINCREMENT", "sqlite"},
	{"SERIAL", "postgres"},
	{"BIGSERIAL", "postgres"},
}

// ValidateDir checks every migration in dir: filename shape, unique
// versions, goose annotations, and portability across the sqlite and
// postgres dialects the engine runs on.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{} // version -> filename

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}

		version := m[1]
		if prev, ok := seen[version]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", version, prev, name)
		}
		seen[version] = name

		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %q: %w", name, err)
		}
		if err := validateMigration(name, string(b)); err != nil {
			return err
		}
	}

	return nil
}

func validateMigration(name, txt string) error {
	up := strings.Index(txt, "-- +goose Up")
	down := strings.Index(txt, "-- +goose Down")
	if up < 0 {
		return fmt.Errorf("migration %q missing \"-- +goose Up\"", name)
	}
	if down < 0 {
		return fmt.Errorf("migration %q missing \"-- +goose Down\"", name)
	}
	if down < up {
		return fmt.Errorf("migration %q has the Down section before Up", name)
	}

	depth := 0
	for ln, line := range strings.Split(txt, "\n") {
		trimmed := strings.TrimSpace(line)
		switch trimmed {
		case "-- +goose StatementBegin":
			if depth > 0 {
				return fmt.Errorf("migration %q line %d: nested StatementBegin", name, ln+1)
			}
			depth++
		case "-- +goose StatementEnd":
			if depth == 0 {
				return fmt.Errorf("migration %q line %d: StatementEnd without StatementBegin", name, ln+1)
			}
			depth--
		}
	}
	if depth != 0 {
		return fmt.Errorf("migration %q has an unclosed StatementBegin", name)
	}

	for ln, line := range strings.Split(txt, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		upper := strings.ToUpper(trimmed)
		for _, d := range dialectOnly {
			if containsKeyword(upper, d.keyword) {
				return fmt.Errorf("migration %q line %d uses %s, which only the %s dialect accepts", name, ln+1, d.keyword, d.engine)
			}
		}
	}
	return nil
}

// containsKeyword matches s as a whole SQL word, so SERIAL does not
// flag a column named serial_number.
func containsKeyword(upper, keyword string) bool {
	for at := 0; ; {
		i := strings.Index(upper[at:], keyword)
		if i < 0 {
			return false
		}
		i += at
		before := i == 0 || !isWordByte(upper[i-1])
		afterIdx := i + len(keyword)
		after := afterIdx >= len(upper) || !isWordByte(upper[afterIdx])
		if before && after {
			return true
		}
		at = i + len(keyword)
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
