package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/vietddude/weatherload/internal/loader"
)

// tableIdent converts a validated dotted identifier into a pgx identifier.
func tableIdent(id loader.Identifier) pgx.Identifier {
	return pgx.Identifier(id.Parts())
}

func columnList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = pgx.Identifier{n}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

// createStagingSQL builds the temp table holding key tuples. Declared types
// come from a validated KeyColumnSpec and are used verbatim.
func createStagingSQL(staging string, keys loader.KeyColumnSpec) string {
	cols := make([]string, len(keys))
	for i, k := range keys {
		cols[i] = fmt.Sprintf("%s %s NOT NULL", pgx.Identifier{k.Name}.Sanitize(), strings.TrimSpace(k.Type))
	}
	return fmt.Sprintf(
		"CREATE TEMP TABLE %s (\n\t%s\n) ON COMMIT DROP",
		pgx.Identifier{staging}.Sanitize(),
		strings.Join(cols, ",\n\t"),
	)
}

// deleteMatchingSQL removes target rows whose full key tuple is staged.
func deleteMatchingSQL(target loader.Identifier, staging string, keys loader.KeyColumnSpec) string {
	cols := columnList(keys.Names())
	return fmt.Sprintf(
		"DELETE FROM %s\nWHERE (%s) IN (SELECT %s FROM %s)",
		tableIdent(target).Sanitize(),
		cols,
		cols,
		pgx.Identifier{staging}.Sanitize(),
	)
}
