// Package conninfo builds PostgreSQL connection strings from CLI flags and ~/.pgpass.
package conninfo

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackc/pgpassfile"
	"github.com/jackc/pgx/v5"

	"github.com/mickamy/pgdot/internal/errs"
)

// Defaults used when a parameter is not given.
const (
	DefaultHost = "/run/postgresql"
	DefaultPort = 5432
)

// Params are the user supplied connection parameters. URL, when set, wins over the rest.
type Params struct {
	URL      string
	Host     string
	Port     int
	User     string
	DBName   string
	PassFile string
}

// Resolve returns a DSN accepted by pgx.
func Resolve(p Params) (string, error) {
	if p.URL != "" {
		if _, err := pgx.ParseConfig(p.URL); err != nil {
			return "", errs.Wrap(err, errs.CodeInvalidRequest, "conninfo: parse url")
		}
		return p.URL, nil
	}

	if p.DBName == "" {
		return "", errs.New(errs.CodeInvalidRequest, "conninfo: database name is required")
	}
	host := p.Host
	if host == "" {
		host = DefaultHost
	}
	port := p.Port
	if port == 0 {
		port = DefaultPort
	}
	user := p.User
	if user == "" {
		user = os.Getenv("USER")
	}

	pairs := [][2]string{
		{"host", host},
		{"port", strconv.Itoa(port)},
		{"user", user},
		{"dbname", p.DBName},
	}
	password, err := lookupPassword(p.PassFile, host, port, p.DBName, user)
	if err != nil {
		return "", err
	}
	if password != "" {
		pairs = append(pairs, [2]string{"password", password})
	}

	parts := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		if kv[1] == "" {
			continue
		}
		parts = append(parts, kv[0]+"="+quote(kv[1]))
	}
	dsn := strings.Join(parts, " ")

	if _, err := pgx.ParseConfig(dsn); err != nil {
		return "", errs.Wrap(err, errs.CodeInvalidRequest, "conninfo: build dsn")
	}
	return dsn, nil
}

// PassFilePath returns $PGPASSFILE, else ~/.pgpass.
func PassFilePath() string {
	if path := os.Getenv("PGPASSFILE"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pgpass")
}

func lookupPassword(path, host string, port int, dbname, user string) (string, error) {
	if path == "" {
		path = PassFilePath()
	}
	if path == "" {
		return "", nil
	}
	passfile, err := pgpassfile.ReadPassfile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", errs.Wrap(err, errs.CodeInvalidRequest, "conninfo: read passfile")
	}
	// libpq matches unix socket directories against "localhost".
	lookupHost := host
	if strings.HasPrefix(host, "/") {
		lookupHost = "localhost"
	}
	return passfile.FindPassword(lookupHost, strconv.Itoa(port), dbname, user), nil
}

// quote escapes a keyword/value connection string value.
func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
