package indexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRebindPostgresPlaceholders(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "no placeholders",
			query: "SELECT 1",
			want:  "SELECT 1",
		},
		{
			name:  "sequential args",
			query: "INSERT INTO t (a, b, c) VALUES (?, ?, ?)",
			want:  "INSERT INTO t (a, b, c) VALUES ($1, $2, $3)",
		},
		{
			name:  "question mark inside string literal",
			query: "SELECT * FROM t WHERE a = '?' AND b = ?",
			want:  "SELECT * FROM t WHERE a = '?' AND b = $1",
		},
		{
			name:  "escaped quote inside string literal",
			query: "SELECT * FROM t WHERE a = 'it''s ?' AND b = ?",
			want:  "SELECT * FROM t WHERE a = 'it''s ?' AND b = $1",
		},
		{
			name:  "upsert with many args",
			query: "INSERT INTO t (a, b) VALUES (?, ?) ON CONFLICT (a) DO UPDATE SET b = ?",
			want:  "INSERT INTO t (a, b) VALUES ($1, $2) ON CONFLICT (a) DO UPDATE SET b = $3",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, rebindPostgresPlaceholders(tc.query))
		})
	}
}
