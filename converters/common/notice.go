package common

import "fmt"

// NoticeHeading opens the notice list of every import that created objects.
const NoticeHeading = "The following structures have either been created or altered."

// GenNotices lists the database and tables an import created or altered.
func GenNotices(database string, tables []string) []string {
	notices := make([]string, 0, 3+2*len(tables))
	notices = append(notices,
		NoticeHeading,
		fmt.Sprintf("Go to database: %s", QuoteIdent(database)),
		fmt.Sprintf("Edit settings for %s", QuoteIdent(database)),
	)
	for _, t := range tables {
		notices = append(notices,
			fmt.Sprintf("Go to table: %s", QuoteIdent(t)),
			fmt.Sprintf("Edit settings for %s", QuoteIdent(t)),
		)
	}
	return notices
}
