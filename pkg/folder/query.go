package folder

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/ethpandaops/iovcalib/pkg/iov"
)

const defaultFindIOVQuery = `SELECT begin_stamp, begin_substamp, end_stamp, end_substamp
FROM {{ .database | default "conditions" }}.{{ .folder | lower }}_iovs
WHERE tag = {{ sqlString .tag }}
  AND (begin_stamp < {{ .ts.stamp }} OR (begin_stamp = {{ .ts.stamp }} AND begin_substamp <= {{ .ts.substamp }}))
ORDER BY begin_stamp DESC, begin_substamp DESC, version DESC
LIMIT 1`

const defaultFetchPayloadQuery = `SELECT channel, name, value
FROM {{ .database | default "conditions" }}.{{ .folder | lower }}_data
WHERE tag = {{ sqlString .tag }}
  AND begin_stamp = {{ .iov.begin.stamp }}
  AND begin_substamp = {{ .iov.begin.substamp }}
  AND version = (
    SELECT max(version)
    FROM {{ .database | default "conditions" }}.{{ .folder | lower }}_iovs
    WHERE tag = {{ sqlString .tag }}
      AND begin_stamp = {{ .iov.begin.stamp }}
      AND begin_substamp = {{ .iov.begin.substamp }}
  )
ORDER BY channel, name`

// QueryEngine renders folder SQL templates with Sprig functions
type QueryEngine struct {
	funcMap template.FuncMap
}

// NewQueryEngine creates a new query engine with Sprig functions and sqlString
func NewQueryEngine() *QueryEngine {
	funcMap := sprig.TxtFuncMap()
	funcMap["sqlString"] = sqlString

	return &QueryEngine{funcMap: funcMap}
}

// Render renders a template with the given variables
func (q *QueryEngine) Render(name, content string, variables map[string]interface{}) (string, error) {
	tmpl, err := template.New(name).Funcs(q.funcMap).Option("missingkey=error").Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, variables); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}

	return buf.String(), nil
}

// BuildVariables builds template variables for a folder query
func BuildVariables(database string, ref Ref) map[string]interface{} {
	return map[string]interface{}{
		"database": database,
		"folder":   ref.Folder,
		"tag":      ref.Tag,
	}
}

func timestampVariables(ts iov.Timestamp) map[string]interface{} {
	return map[string]interface{}{
		"stamp":    ts.Stamp,
		"substamp": ts.SubStamp,
	}
}

func intervalVariables(interval iov.Interval) map[string]interface{} {
	return map[string]interface{}{
		"begin": timestampVariables(interval.Begin),
		"end":   timestampVariables(interval.End),
	}
}

// sqlString quotes s as a single-quoted SQL string literal
func sqlString(s string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)

	return "'" + escaped + "'"
}
