package folder

import (
	"testing"

	"github.com/ethpandaops/iovcalib/pkg/iov"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryEngine_Render(t *testing.T) {
	engine := NewQueryEngine()

	tests := []struct {
		name     string
		template string
		vars     map[string]interface{}
		expected string
		wantErr  bool
	}{
		{
			name:     "sprig functions",
			template: "{{ .folder | upper }}_{{ .tag | default \"head\" }}",
			vars:     map[string]interface{}{"folder": "calib", "tag": ""},
			expected: "CALIB_head",
		},
		{
			name:     "sql string quoting",
			template: "tag = {{ sqlString .tag }}",
			vars:     map[string]interface{}{"tag": `it's\here`},
			expected: `tag = 'it\'s\\here'`,
		},
		{
			name:     "missing key",
			template: "{{ .nope }}",
			vars:     map[string]interface{}{},
			wantErr:  true,
		},
		{
			name:     "parse error",
			template: "{{ .folder ",
			vars:     map[string]interface{}{},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := engine.Render("test", tt.template, tt.vars)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestDefaultQueries(t *testing.T) {
	engine := NewQueryEngine()

	vars := BuildVariables("", Ref{Folder: "ElectronicsCalib", Tag: "v2"})
	vars["iov"] = intervalVariables(iov.NewInterval(iov.NewTimestamp(10, 1), iov.MaxTimestamp()))

	query, err := engine.Render("fetch_payload", defaultFetchPayloadQuery, vars)
	require.NoError(t, err)

	assert.Contains(t, query, "FROM conditions.electronicscalib_data")
	assert.Contains(t, query, "tag = 'v2'")
	assert.Contains(t, query, "begin_stamp = 10")
	assert.Contains(t, query, "begin_substamp = 1")

	vars = BuildVariables("archive", Ref{Folder: "electronicscalib", Tag: "v1"})
	vars["ts"] = timestampVariables(iov.MaxTimestamp())

	query, err = engine.Render("find_iov", defaultFindIOVQuery, vars)
	require.NoError(t, err)

	assert.Contains(t, query, "FROM archive.electronicscalib_iovs")
	assert.Contains(t, query, "begin_stamp < 18446744073709551615")
}
