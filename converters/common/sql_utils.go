package common

import (
	"strings"
)

// StatementDelimiter terminates every statement of a generated script.
const StatementDelimiter = ";;"

// QuoteIdent backquotes a MySQL identifier, doubling embedded backquotes.
func QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

var escaper = strings.NewReplacer(
	"\x00", `\0`,
	"\n", `\n`,
	"\r", `\r`,
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	"\x1a", `\Z`,
)

// EscapeString escapes s for use inside a quoted MySQL string literal.
func EscapeString(s string) string {
	return escaper.Replace(s)
}

// QuoteString returns s as a single-quoted, escaped literal.
func QuoteString(s string) string {
	return "'" + EscapeString(s) + "'"
}

// Literal renders a cell for a VALUES tuple.
func Literal(c Cell) string {
	if c.IsNull() {
		return "NULL"
	}
	return QuoteString(c.Literal)
}

// GenCreateDatabaseSQL generates the CREATE DATABASE statement.
func GenCreateDatabaseSQL(database, charset, collation string) string {
	return "CREATE DATABASE IF NOT EXISTS " + QuoteIdent(database) + tableOptions(charset, collation)
}

func tableOptions(charset, collation string) string {
	var b strings.Builder
	if charset != "" {
		b.WriteString(" DEFAULT CHARACTER SET ")
		b.WriteString(charset)
	}
	if collation != "" {
		b.WriteString(" COLLATE ")
		b.WriteString(collation)
	}
	return b.String()
}

func qualified(database, table string) string {
	return QuoteIdent(database) + "." + QuoteIdent(table)
}

// GenCreateTableSQL generates a CREATE TABLE statement
func GenCreateTableSQL(database string, table *Table, charset, collation string) string {
	var builder strings.Builder
	builder.Grow(len(database) + len(table.Name) + len(table.Columns)*24) // Heuristic pre-allocation

	builder.WriteString("CREATE TABLE IF NOT EXISTS ")
	builder.WriteString(qualified(database, table.Name))
	builder.WriteString(" (")
	for i, col := range table.Columns {
		builder.WriteString(QuoteIdent(col.Name))
		builder.WriteByte(' ')
		builder.WriteString(col.SQLType())
		if i < len(table.Columns)-1 {
			builder.WriteString(", ")
		}
	}
	builder.WriteByte(')')
	builder.WriteString(tableOptions(charset, collation))
	return builder.String()
}

const tupleSeparator = ",\n "

// GenInsertSQL generates the INSERT statements for the rows of table. A new
// statement starts whenever the next tuple would push the current one past
// maxLength bytes; maxLength <= 0 puts every row into one statement.
func GenInsertSQL(database string, table *Table, maxLength int) []string {
	if len(table.Rows) == 0 {
		return nil
	}

	var prefix strings.Builder
	prefix.WriteString("INSERT INTO ")
	prefix.WriteString(qualified(database, table.Name))
	prefix.WriteString(" (")
	for i, col := range table.Columns {
		if i > 0 {
			prefix.WriteString(", ")
		}
		prefix.WriteString(QuoteIdent(col.Name))
	}
	prefix.WriteString(") VALUES ")
	head := prefix.String()

	var stmts []string
	var builder strings.Builder
	tuples := 0
	flush := func() {
		if tuples > 0 {
			stmts = append(stmts, builder.String())
		}
		builder.Reset()
		tuples = 0
	}

	for _, row := range table.Rows {
		tuple := genTuple(row)
		if tuples > 0 && maxLength > 0 && builder.Len()+len(tupleSeparator)+len(tuple) > maxLength {
			flush()
		}
		if tuples == 0 {
			builder.WriteString(head)
		} else {
			builder.WriteString(tupleSeparator)
		}
		builder.WriteString(tuple)
		tuples++
	}
	flush()
	return stmts
}

func genTuple(row Row) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, c := range row {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(Literal(c))
	}
	b.WriteByte(')')
	return b.String()
}

// JoinStatements renders statements as one script, each terminated by
// StatementDelimiter.
func JoinStatements(stmts []string) string {
	var b strings.Builder
	for _, s := range stmts {
		b.WriteString(s)
		b.WriteString(StatementDelimiter)
	}
	return b.String()
}

// SplitStatements splits a script produced by JoinStatements. Delimiters
// inside quoted literals and identifiers are ignored; blank statements are
// dropped.
func SplitStatements(script string) []string {
	var stmts []string
	var quote byte
	start := 0
	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case quote != 0:
			if c == '\\' && quote != '`' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case strings.HasPrefix(script[i:], StatementDelimiter):
			if s := strings.TrimSpace(script[start:i]); s != "" {
				stmts = append(stmts, s)
			}
			i += len(StatementDelimiter) - 1
			start = i + 1
		}
	}
	if s := strings.TrimSpace(script[start:]); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}
