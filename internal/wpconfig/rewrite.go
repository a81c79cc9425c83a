package wpconfig

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"wp-guardian/internal/config"
)

// FileName is the WordPress configuration file at the site root.
const FileName = "wp-config.php"

// definePattern matches define( 'KEY', 'value' ) in its common spellings:
// either quote style, optional whitespace, optional trailing comment left
// untouched.
func definePattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)define\(\s*['"]` + regexp.QuoteMeta(key) + `['"]\s*,\s*['"].*?['"]\s*\)`)
}

// flagPattern additionally accepts bare true/false values, the usual
// spelling of WP_CACHE.
func flagPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)define\(\s*['"]` + regexp.QuoteMeta(key) + `['"]\s*,\s*(?:true|false|['"].*?['"])\s*\)`)
}

// phpQuote renders a single-quoted PHP string literal.
func phpQuote(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `'`, `\'`)
	return "'" + value + "'"
}

// Rewrite updates the database credential and cache defines in the
// wp-config.php under siteRoot to match the current configuration. A
// restored archive may carry the credentials of the site it was taken
// from; after a full restore the file must point at the database and
// object cache this host actually runs. The credential defines are
// required; cache defines are rewritten only where the file has them.
func Rewrite(siteRoot string, db config.DatabaseConfig, cache config.CacheConfig) error {
	path := siteRoot + string(os.PathSeparator) + FileName

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}

	host := db.Host
	if db.Port != 0 && db.Port != 3306 {
		host = fmt.Sprintf("%s:%d", db.Host, db.Port)
	}

	replacements := map[string]string{
		"DB_NAME":     db.Name,
		"DB_USER":     db.User,
		"DB_PASSWORD": db.Password,
		"DB_HOST":     host,
	}

	updated := string(content)
	for key, value := range replacements {
		pattern := definePattern(key)
		if !pattern.MatchString(updated) {
			return fmt.Errorf("%s has no define for %s", FileName, key)
		}
		updated = pattern.ReplaceAllString(updated, fmt.Sprintf("define( '%s', %s )", key, phpQuote(value)))
	}

	if flag := flagPattern("WP_CACHE"); flag.MatchString(updated) {
		updated = flag.ReplaceAllString(updated, fmt.Sprintf("define( 'WP_CACHE', %t )", cache.Enabled))
	}
	for key, value := range map[string]string{
		"WP_REDIS_HOST":     cache.Host,
		"WP_CACHE_KEY_SALT": cache.KeySalt,
	} {
		if pattern := definePattern(key); pattern.MatchString(updated) {
			updated = pattern.ReplaceAllString(updated, fmt.Sprintf("define( '%s', %s )", key, phpQuote(value)))
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}
