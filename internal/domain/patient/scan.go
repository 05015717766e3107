package patient

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	isoLayout      = "2006-01-02T15:04:05"
	isoLayoutMicro = "2006-01-02T15:04:05.000000"
)

// FormatTimestamp renders t as ISO-8601 wall-clock text. Microseconds are
// appended only when non-zero.
func FormatTimestamp(t time.Time) string {
	if t.Nanosecond()/1000 != 0 {
		return t.Format(isoLayoutMicro)
	}
	return t.Format(isoLayout)
}

// isoText scans a DATE or TIMESTAMP column into ISO-8601 text. Columns that
// already hold text are kept verbatim.
type isoText struct {
	value *string
}

func (t *isoText) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		t.value = nil
		return nil
	case time.Time:
		s = FormatTimestamp(v)
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("unsupported date value of type %T", src)
	}
	t.value = &s
	return nil
}

func nullStringPtr(n sql.NullString) *string {
	if n.Valid {
		return &n.String
	}
	return nil
}

func nullInt64Ptr(n sql.NullInt64) *int64 {
	if n.Valid {
		return &n.Int64
	}
	return nil
}

func scanBasicInfo(rows *sql.Rows) (*BasicInfo, error) {
	var (
		b                                                 BasicInfo
		kanaName, kanaFull, kanjiName, kanjiFull, sex     sql.NullString
		blood, occupation, cat1, cat2, comment1, comment2 sql.NullString
		birth, updated, registered                        isoText
	)
	err := rows.Scan(
		&b.PatientID, &kanaName, &kanaFull, &kanjiName, &kanjiFull, &sex,
		&birth, &blood, &occupation, &cat1, &cat2, &comment1, &comment2,
		&updated, &registered,
	)
	if err != nil {
		return nil, err
	}
	b.KanaName = nullStringPtr(kanaName)
	b.KanaFullName = nullStringPtr(kanaFull)
	b.KanjiName = nullStringPtr(kanjiName)
	b.KanjiFullName = nullStringPtr(kanjiFull)
	b.Sex = nullStringPtr(sex)
	b.BirthDate = birth.value
	b.BloodType = nullStringPtr(blood)
	b.Occupation = nullStringPtr(occupation)
	b.Category1 = nullStringPtr(cat1)
	b.Category2 = nullStringPtr(cat2)
	b.Comment1 = nullStringPtr(comment1)
	b.Comment2 = nullStringPtr(comment2)
	b.UpdatedAt = updated.value
	b.RegisteredAt = registered.value
	return &b, nil
}

func scanAddress(rows *sql.Rows) (*Address, error) {
	var (
		a                                Address
		addrType, postal, address, phone sql.NullString
		updated                          isoText
	)
	if err := rows.Scan(&a.PatientID, &addrType, &postal, &address, &phone, &updated); err != nil {
		return nil, err
	}
	a.AddressType = nullStringPtr(addrType)
	a.PostalCode = nullStringPtr(postal)
	a.Address = nullStringPtr(address)
	a.Phone = nullStringPtr(phone)
	a.UpdatedAt = updated.value
	return &a, nil
}

func scanInsurance(rows *sql.Rows) (*Insurance, error) {
	var (
		ins                                           Insurance
		insNo, insurerNo, insType, relation, sym, num sql.NullString
		validFrom, validTo, updated                   isoText
	)
	err := rows.Scan(
		&ins.PatientID, &insNo, &insurerNo, &insType, &relation, &sym, &num,
		&validFrom, &validTo, &updated,
	)
	if err != nil {
		return nil, err
	}
	ins.InsuranceNo = nullStringPtr(insNo)
	ins.InsurerNo = nullStringPtr(insurerNo)
	ins.InsuranceType = nullStringPtr(insType)
	ins.Relationship = nullStringPtr(relation)
	ins.Symbol = nullStringPtr(sym)
	ins.Number = nullStringPtr(num)
	ins.ValidFrom = validFrom.value
	ins.ValidTo = validTo.value
	ins.UpdatedAt = updated.value
	return &ins, nil
}

func scanDisease(rows *sql.Rows) (*Disease, error) {
	var (
		d                         Disease
		seq                       sql.NullInt64
		dept, code, name, outcome sql.NullString
		start, end, updated       isoText
	)
	err := rows.Scan(
		&d.PatientID, &seq, &dept, &code, &name, &start, &end, &outcome, &updated,
	)
	if err != nil {
		return nil, err
	}
	d.Sequence = nullInt64Ptr(seq)
	d.Department = nullStringPtr(dept)
	d.DiseaseCode = nullStringPtr(code)
	d.DiseaseName = nullStringPtr(name)
	d.StartDate = start.value
	d.EndDate = end.value
	d.Outcome = nullStringPtr(outcome)
	d.UpdatedAt = updated.value
	return &d, nil
}
