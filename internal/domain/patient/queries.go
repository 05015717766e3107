package patient

import (
	"fmt"

	"github.com/ehr/patientdata/internal/platform/db"
)

// Column lists are fixed by the RAPPORT schema. Scanners depend on their
// order and length.
const (
	basicInfoCols = `F001, F002, F003, F004, F005, F006, F007, F008, F010,
		F016, F017, F018, F019, UPDDT, F023`
	addressCols   = `F001, F002, F003, F004, F005, UPDDT`
	insuranceCols = `F001, F002, F003, F004, F005, F006, F007, F008, F009, UPDDT`
	diseaseCols   = `F001, F002, F003, F004, F005, F006, F007, F008, UPDDT`

	basicInfoColCount = 15
	addressColCount   = 6
	insuranceColCount = 10
	diseaseColCount   = 9
)

// queries holds the statements rendered for one dialect.
type queries struct {
	basicInfo  string
	addresses  string
	insurance  string
	diseases   string
	searchName string
	dateRange  string
}

func newQueries(d db.Dialect) queries {
	p := d.Placeholder
	return queries{
		basicInfo: fmt.Sprintf(`SELECT %s FROM TTPT01 WHERE F001 = %s`, basicInfoCols, p(1)),
		addresses: fmt.Sprintf(`SELECT %s FROM TTPT02 WHERE F001 = %s ORDER BY F002`, addressCols, p(1)),
		insurance: fmt.Sprintf(`SELECT %s FROM TTPT11 WHERE F001 = %s ORDER BY F002`, insuranceCols, p(1)),
		diseases:  fmt.Sprintf(`SELECT %s FROM TTBY01 WHERE F001 = %s ORDER BY F006 DESC`, diseaseCols, p(1)),
		searchName: fmt.Sprintf(`SELECT %s FROM TTPT01 WHERE F003 LIKE %s ESCAPE '\' ORDER BY F001 %s`,
			basicInfoCols, p(1), d.Limit(2)),
		dateRange: fmt.Sprintf(`SELECT %s FROM TTPT01
		WHERE F023 >= TO_DATE(%s, 'YYYY-MM-DD') AND F023 < TO_DATE(%s, 'YYYY-MM-DD')
		ORDER BY F023 DESC`, basicInfoCols, p(1), p(2)),
	}
}
