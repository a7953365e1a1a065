package httpapi

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// tokenAlphabet is the full legal character set for a token value; a
// bearer value outside it can never match a loaded token and is rejected
// before a map lookup is even attempted.
var tokenAlphabet = regexp.MustCompile(`^[A-Za-z0-9_=-]+$`)

// TokenSet maps a bearer token to the display name it authenticates as.
type TokenSet map[string]string

// LoadTokenFile parses the newline-delimited auth file: each line is
// `<name> <token> <optional comment>`, comment running to end of line.
// A line starting with `#`, blank, or carrying fewer than the two
// required fields is skipped with a logged warning rather than failing
// the whole load — one malformed operator entry must not lock everyone
// else out.
func LoadTokenFile(logger *slog.Logger, path string) (TokenSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("httpapi: open auth file %s: %w", path, err)
	}
	defer f.Close()

	tokens := make(TokenSet)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			logger.Warn("httpapi: auth file blank or comment line, skipping.", "file", path, "line", lineNo)
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			logger.Warn("httpapi: auth file line missing name/token pair, skipping.", "file", path, "line", lineNo)
			continue
		}
		name, token := fields[0], fields[1]
		if !tokenAlphabet.MatchString(token) {
			logger.Warn("httpapi: auth file token uses characters outside the token alphabet, skipping.", "file", path, "line", lineNo)
			continue
		}
		tokens[token] = name
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("httpapi: read auth file %s: %w", path, err)
	}
	return tokens, nil
}
