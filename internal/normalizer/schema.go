package normalizer

import (
	"strings"

	"sms-spend-analyzer/pkg/errors"
)

// Schema is a DatasetConfig resolved against one dataset header: the actual
// column backing each field that is present.
type Schema struct {
	columns map[Field]string
	headers []string
	chain   FieldChain
}

// Resolve maps every configured field onto the header. It fails with a
// missing-fields error when amount or message cannot be found.
func (c *DatasetConfig) Resolve(headers []string) (*Schema, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	ignored := make(map[string]bool, len(c.IgnoreColumns))
	for _, col := range c.IgnoreColumns {
		ignored[strings.TrimSpace(col)] = true
	}

	var usable []string
	byLower := make(map[string]string, len(headers))
	exact := make(map[string]bool, len(headers))
	for _, h := range headers {
		if ignored[strings.TrimSpace(h)] {
			continue
		}
		usable = append(usable, h)
		exact[h] = true
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := byLower[key]; !dup {
			byLower[key] = h
		}
	}

	schema := &Schema{
		columns: make(map[Field]string),
		headers: usable,
		chain:   append(FieldChain(nil), c.CounterpartyChain...),
	}
	taken := make(map[string]bool)
	for _, f := range AllFields {
		for _, candidate := range c.Spec(f).candidates() {
			col, ok := lookup(candidate, exact, byLower)
			if !ok || taken[col] {
				continue
			}
			schema.columns[f] = col
			taken[col] = true
			break
		}
	}

	var missing []string
	for _, f := range []Field{FieldAmount, FieldMessage} {
		if _, ok := schema.columns[f]; !ok {
			missing = append(missing, c.Spec(f).candidates()[0])
		}
	}
	if len(missing) > 0 {
		return nil, errors.MissingFieldsError(missing, usable)
	}
	return schema, nil
}

// lookup prefers an exact header match and falls back to a case-insensitive one
func lookup(candidate string, exact map[string]bool, byLower map[string]string) (string, bool) {
	if exact[candidate] {
		return candidate, true
	}
	col, ok := byLower[strings.ToLower(strings.TrimSpace(candidate))]
	return col, ok
}

// Column returns the header backing f
func (s *Schema) Column(f Field) (string, bool) {
	col, ok := s.columns[f]
	return col, ok
}

// Has reports whether the dataset carries f
func (s *Schema) Has(f Field) bool {
	_, ok := s.columns[f]
	return ok
}

// Headers returns the usable header columns, ignored ones removed
func (s *Schema) Headers() []string {
	return append([]string(nil), s.headers...)
}

// Chain returns the counterparty fallback chain
func (s *Schema) Chain() FieldChain {
	return append(FieldChain(nil), s.chain...)
}

// Mapping returns field to column for every resolved field
func (s *Schema) Mapping() map[Field]string {
	out := make(map[Field]string, len(s.columns))
	for f, c := range s.columns {
		out[f] = c
	}
	return out
}
