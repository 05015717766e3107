package patient

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// BasicInfo maps to the TTPT01 patient master table.
type BasicInfo struct {
	PatientID     string  `json:"患者番号" yaml:"患者番号"`
	KanaName      *string `json:"カナ名" yaml:"カナ名"`
	KanaFullName  *string `json:"カナ氏名" yaml:"カナ氏名"`
	KanjiName     *string `json:"漢字名" yaml:"漢字名"`
	KanjiFullName *string `json:"漢字氏名" yaml:"漢字氏名"`
	Sex           *string `json:"性別" yaml:"性別"`
	BirthDate     *string `json:"生年月日" yaml:"生年月日"`
	BloodType     *string `json:"血液型" yaml:"血液型"`
	Occupation    *string `json:"職種" yaml:"職種"`
	Category1     *string `json:"患者区分1" yaml:"患者区分1"`
	Category2     *string `json:"患者区分2" yaml:"患者区分2"`
	Comment1      *string `json:"患者コメント1" yaml:"患者コメント1"`
	Comment2      *string `json:"患者コメント2" yaml:"患者コメント2"`
	UpdatedAt     *string `json:"更新日時" yaml:"更新日時"`
	RegisteredAt  *string `json:"登録日時" yaml:"登録日時"`
}

// Address maps to the TTPT02 patient address table.
type Address struct {
	PatientID   string  `json:"患者番号" yaml:"患者番号"`
	AddressType *string `json:"住所区分" yaml:"住所区分"`
	PostalCode  *string `json:"郵便番号" yaml:"郵便番号"`
	Address     *string `json:"住所" yaml:"住所"`
	Phone       *string `json:"電話番号" yaml:"電話番号"`
	UpdatedAt   *string `json:"更新日時" yaml:"更新日時"`
}

// Insurance maps to the TTPT11 patient insurance table.
type Insurance struct {
	PatientID     string  `json:"患者番号" yaml:"患者番号"`
	InsuranceNo   *string `json:"保険番号" yaml:"保険番号"`
	InsurerNo     *string `json:"保険者番号" yaml:"保険者番号"`
	InsuranceType *string `json:"保険種別" yaml:"保険種別"`
	Relationship  *string `json:"本人家族区分" yaml:"本人家族区分"`
	Symbol        *string `json:"記号" yaml:"記号"`
	Number        *string `json:"番号" yaml:"番号"`
	ValidFrom     *string `json:"有効開始日" yaml:"有効開始日"`
	ValidTo       *string `json:"有効終了日" yaml:"有効終了日"`
	UpdatedAt     *string `json:"更新日時" yaml:"更新日時"`
}

// Disease maps to the TTBY01 diagnosis table.
type Disease struct {
	PatientID   string  `json:"患者番号" yaml:"患者番号"`
	Sequence    *int64  `json:"傷病名連番" yaml:"傷病名連番"`
	Department  *string `json:"診療科" yaml:"診療科"`
	DiseaseCode *string `json:"傷病名コード" yaml:"傷病名コード"`
	DiseaseName *string `json:"傷病名" yaml:"傷病名"`
	StartDate   *string `json:"診療開始日" yaml:"診療開始日"`
	EndDate     *string `json:"診療終了日" yaml:"診療終了日"`
	Outcome     *string `json:"転帰区分" yaml:"転帰区分"`
	UpdatedAt   *string `json:"更新日時" yaml:"更新日時"`
}

// Record is the aggregate of everything known about one patient. BasicInfo is
// nil for an unknown patient; the lists are empty, never nil, after a fetch.
type Record struct {
	BasicInfo *BasicInfo   `json:"基本情報" yaml:"基本情報"`
	Addresses []*Address   `json:"住所情報" yaml:"住所情報"`
	Insurance []*Insurance `json:"保険情報" yaml:"保険情報"`
	Diseases  []*Disease   `json:"傷病名情報" yaml:"傷病名情報"`
}

// Batch holds records keyed by patient id. Keys are encoded in the order
// they were first added.
type Batch struct {
	ids     []string
	records map[string]*Record
}

func NewBatch() *Batch {
	return &Batch{records: make(map[string]*Record)}
}

// Add stores rec under id. Re-adding an id replaces its record in place.
func (b *Batch) Add(id string, rec *Record) {
	if b.records == nil {
		b.records = make(map[string]*Record)
	}
	if _, ok := b.records[id]; !ok {
		b.ids = append(b.ids, id)
	}
	b.records[id] = rec
}

func (b *Batch) Get(id string) *Record {
	return b.records[id]
}

// IDs returns the keys in insertion order.
func (b *Batch) IDs() []string {
	return append([]string(nil), b.ids...)
}

func (b *Batch) Len() int {
	return len(b.ids)
}

func (b *Batch) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i, id := range b.ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := enc.Encode(id); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := enc.Encode(b.records[id]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (b *Batch) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("batch: expected object, got %v", tok)
	}

	*b = Batch{records: make(map[string]*Record)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("batch: expected patient id, got %v", tok)
		}
		var rec *Record
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("batch %s: %w", id, err)
		}
		b.Add(id, rec)
	}
	_, err = dec.Token()
	return err
}

func (b *Batch) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, id := range b.ids {
		var value yaml.Node
		if err := value.Encode(b.records[id]); err != nil {
			return nil, fmt.Errorf("batch %s: %w", id, err)
		}
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: id}
		node.Content = append(node.Content, key, &value)
	}
	return node, nil
}

func (b *Batch) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("batch: expected mapping at line %d", value.Line)
	}
	*b = Batch{records: make(map[string]*Record)}
	for i := 0; i+1 < len(value.Content); i += 2 {
		id := value.Content[i].Value
		var rec *Record
		if err := value.Content[i+1].Decode(&rec); err != nil {
			return fmt.Errorf("batch %s: %w", id, err)
		}
		b.Add(id, rec)
	}
	return nil
}
