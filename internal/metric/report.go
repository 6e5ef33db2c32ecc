package metric

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/park285/chess-metrics/internal/board"
)

// Values maps a metric's short name to its result (bool or int).
type Values map[string]any

// Int returns the integer metric name, or 0 when absent or not an integer.
func (v Values) Int(name string) int {
	switch n := v[name].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func (v Values) Bool(name string) bool {
	b, _ := v[name].(bool)
	return b
}

type Players struct {
	White PlayerRecord `json:"white"`
	Black PlayerRecord `json:"black"`
}

// Report is the complete output of one Calculate call. Squares always holds
// 64 records in board.ReportOrder.
type Report struct {
	Players Players        `json:"players"`
	Pieces  []PieceRecord  `json:"pieces"`
	Squares []SquareRecord `json:"squares"`
}

func (r *Report) Player(c board.Color) PlayerRecord {
	if c == board.Black {
		return r.Players.Black
	}
	return r.Players.White
}

func (r *Report) Piece(sq board.Square) (PieceRecord, bool) {
	for _, p := range r.Pieces {
		if p.Square == sq {
			return p, true
		}
	}
	return PieceRecord{}, false
}

func (r *Report) Square(sq board.Square) (SquareRecord, bool) {
	for _, s := range r.Squares {
		if s.Square == sq {
			return s, true
		}
	}
	return SquareRecord{}, false
}

type PlayerRecord struct {
	Metrics Values
}

type PieceRecord struct {
	Type    board.PieceType
	Color   board.Color
	Square  board.Square
	Metrics Values
}

type SquareRecord struct {
	Square  board.Square
	Metrics Values
}

// Records serialize flat: base fields first, then metrics by name.

type field struct {
	key   string
	value any
}

func (r PlayerRecord) MarshalJSON() ([]byte, error) {
	return marshalFlat(nil, r.Metrics)
}

func (r *PlayerRecord) UnmarshalJSON(data []byte) error {
	fields, err := decodeFlat(data)
	if err != nil {
		return err
	}
	r.Metrics = fields
	return nil
}

func (r PieceRecord) MarshalJSON() ([]byte, error) {
	return marshalFlat([]field{
		{"type", r.Type},
		{"color", r.Color},
		{"square", r.Square},
	}, r.Metrics)
}

func (r *PieceRecord) UnmarshalJSON(data []byte) error {
	fields, err := decodeFlat(data)
	if err != nil {
		return err
	}
	var out PieceRecord
	if err := takeText(fields, "type", &out.Type); err != nil {
		return err
	}
	if err := takeText(fields, "color", &out.Color); err != nil {
		return err
	}
	if err := takeText(fields, "square", &out.Square); err != nil {
		return err
	}
	out.Metrics = fields
	*r = out
	return nil
}

func (r SquareRecord) MarshalJSON() ([]byte, error) {
	return marshalFlat([]field{{"square", r.Square}}, r.Metrics)
}

func (r *SquareRecord) UnmarshalJSON(data []byte) error {
	fields, err := decodeFlat(data)
	if err != nil {
		return err
	}
	var out SquareRecord
	if err := takeText(fields, "square", &out.Square); err != nil {
		return err
	}
	out.Metrics = fields
	*r = out
	return nil
}

func marshalFlat(base []field, metrics Values) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	taken := make(map[string]bool, len(base))
	write := func(key string, value any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}
	for _, f := range base {
		taken[f.key] = true
		if err := write(f.key, f.value); err != nil {
			return nil, err
		}
	}
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		if !taken[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := write(k, metrics[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// decodeFlat reads a flat object, turning integral numbers into int so a
// decoded report compares equal to a computed one.
func decodeFlat(data []byte) (Values, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	out := make(Values, len(raw))
	for k, v := range raw {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				out[k] = int(i)
				continue
			}
			f, err := n.Float64()
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", k, err)
			}
			out[k] = f
			continue
		}
		out[k] = v
	}
	return out, nil
}

func takeText(fields Values, key string, dst encoding.TextUnmarshaler) error {
	s, ok := fields[key].(string)
	if !ok {
		return fmt.Errorf("missing %s", key)
	}
	delete(fields, key)
	return dst.UnmarshalText([]byte(s))
}
