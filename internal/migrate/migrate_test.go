package migrate

import (
	"strings"
	"testing"
)

func TestSplitSQL(t *testing.T) {
	cases := []struct {
		name string
		sql  string
		want []string
	}{
		{"two statements", "CREATE TABLE a (id int);\nCREATE INDEX a_id ON a (id);\n", []string{"CREATE TABLE a (id int)", "CREATE INDEX a_id ON a (id)"}},
		{"comments and blanks", "-- header\n\n  -- indented\nCREATE TABLE b (\n    id int -- trailing stays\n);\n", []string{"CREATE TABLE b (\n    id int -- trailing stays\n)"}},
		{"only comments", "-- nothing\n", []string{}},
		{"no trailing semicolon", "SELECT 1", []string{"SELECT 1"}},
	}
	for _, tc := range cases {
		got := SplitSQL(tc.sql)
		if strings.Join(got, "|") != strings.Join(tc.want, "|") || len(got) != len(tc.want) {
			t.Errorf("%s: SplitSQL = %q, want %q", tc.name, got, tc.want)
		}
	}
}
