package ftpsession

import (
	"fmt"
	"strings"

	"github.com/gonzalop/ftpsession/internal/i18n"
)

// Localizer supplies message templates for connection and login failures.
// A template has one %s slot, filled with the server or user name. A
// template without exactly one slot, the empty one included, makes the
// session fall back to the built-in catalog.
type Localizer interface {
	Template(lang string, kind ErrorKind) string
}

// CatalogLocalizer serves templates from a YAML message catalog. The zero
// value uses the built-in English and Spanish messages.
type CatalogLocalizer struct {
	catalog *i18n.Catalog
}

// LoadLocalizer reads a YAML catalog and layers it over the built-in one:
//
//	de:
//	  CONNECTION: 'Verbindungsfehler: "%s"'
//	  LOGIN: 'Anmeldefehler: "%s"'
func LoadLocalizer(path string) (*CatalogLocalizer, error) {
	c, err := i18n.Load(path)
	if err != nil {
		return nil, err
	}
	return &CatalogLocalizer{catalog: c}, nil
}

func (l *CatalogLocalizer) Template(lang string, kind ErrorKind) string {
	c := l.catalog
	if c == nil {
		c = i18n.Default()
	}
	switch kind {
	case KindConnection:
		return c.Template(lang, i18n.KeyConnection)
	case KindLogin:
		return c.Template(lang, i18n.KeyLogin)
	}
	return ""
}

// localize renders the message for kind, preferring the session's localizer.
func localize(l Localizer, lang string, kind ErrorKind, subject string) string {
	tmpl := l.Template(lang, kind)
	if strings.Count(tmpl, "%s") != 1 {
		tmpl = (&CatalogLocalizer{}).Template(lang, kind)
	}
	if tmpl == "" {
		return ""
	}
	return fmt.Sprintf(tmpl, subject)
}
