package markdown

import (
	"context"
	"strings"
	"testing"

	"github.com/darianmavgo/mkimport/converters/common"
)

func TestMarkdownConverter(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		expectedTables []string
		expectedData   map[string][][]string // sheet name -> rows (excluding headers)
		expectedHeader map[string][]string   // sheet name -> headers
	}{
		{
			name: "Simple Table",
			input: `
| Col1 | Col2 |
|---|---|
| Val1 | Val2 |
| Val3 | Val4 |
`,
			expectedTables: []string{""},
			expectedHeader: map[string][]string{"": {"Col1", "Col2"}},
			expectedData: map[string][][]string{
				"": {
					{"Val1", "Val2"},
					{"Val3", "Val4"},
				},
			},
		},
		{
			name: "Named Table Header",
			input: `
### Users
| ID | Name |
|:---|---:|
| 1 | Alice |
`,
			expectedTables: []string{"Users"},
			expectedHeader: map[string][]string{"Users": {"ID", "Name"}},
			expectedData: map[string][][]string{
				"Users": {
					{"1", "Alice"},
				},
			},
		},
		{
			name: "Named Table Anchor",
			input: `
<a id="products"></a>
| ID | Product |
|---|---|
| 10 | Apple \| Pear |
| 11 |
`,
			expectedTables: []string{"products"},
			expectedHeader: map[string][]string{"products": {"ID", "Product"}},
			expectedData: map[string][][]string{
				"products": {
					{"10", "Apple | Pear"},
					{"11", ""},
				},
			},
		},
		{
			name: "Single Hyphen Separator",
			input: `
| a | b |
|-|:-:|
| 1 | 2 |
`,
			expectedTables: []string{""},
			expectedHeader: map[string][]string{"": {"a", "b"}},
			expectedData:   map[string][][]string{"": {{"1", "2"}}},
		},
		{
			name: "No Outer Pipes",
			input: `
## Stock
item | qty
--- | ---
bolt | 4
nut | 9
`,
			expectedTables: []string{"Stock"},
			expectedHeader: map[string][]string{"Stock": {"item", "qty"}},
			expectedData:   map[string][][]string{"Stock": {{"bolt", "4"}, {"nut", "9"}}},
		},
		{
			name: "Thematic Break Is Not A Separator",
			input: `
Title
---
text \| with escaped pipe
---
`,
			expectedTables: nil,
		},
		{
			name: "Header Only Is Skipped",
			input: `
| A | B |
|---|---|

| not a table |
`,
			expectedTables: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewMarkdownConverter(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("NewMarkdownConverter failed: %v", err)
			}
			if c.DatabaseName() != "MARKDOWN_DB" {
				t.Errorf("DatabaseName() = %q", c.DatabaseName())
			}

			var names []string
			err = c.ScanSheets(context.Background(), func(s *common.Sheet) error {
				names = append(names, s.Name)

				if want := tt.expectedHeader[s.Name]; strings.Join(s.Columns, ",") != strings.Join(want, ",") {
					t.Errorf("sheet %q headers = %v, want %v", s.Name, s.Columns, want)
				}
				want := tt.expectedData[s.Name]
				if len(s.Rows) != len(want) {
					t.Fatalf("sheet %q has %d rows, want %d", s.Name, len(s.Rows), len(want))
				}
				for i, row := range s.Rows {
					for j, cell := range row {
						if cell.Literal != want[i][j] {
							t.Errorf("sheet %q row %d col %d = %q, want %q", s.Name, i, j, cell.Literal, want[i][j])
						}
					}
				}
				return nil
			})
			if err != nil {
				t.Fatalf("ScanSheets failed: %v", err)
			}
			if strings.Join(names, ",") != strings.Join(tt.expectedTables, ",") || len(names) != len(tt.expectedTables) {
				t.Errorf("sheets = %q, want %q", names, tt.expectedTables)
			}
		})
	}
}

func TestMarkdownRecognition(t *testing.T) {
	c, err := NewMarkdownConverter(strings.NewReader("| n | p |\n|---|---|\n| 1,000 | 5% |\n"))
	if err != nil {
		t.Fatal(err)
	}
	err = c.ScanSheets(context.Background(), func(s *common.Sheet) error {
		if s.Rows[0][0].Kind != common.CellNumber {
			t.Errorf("kind = %v, want number", s.Rows[0][0].Kind)
		}
		if s.Rows[0][1] != common.NewCell(common.CellPercentage, "0.05") {
			t.Errorf("cell = %+v, want percentage 0.05", s.Rows[0][1])
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
