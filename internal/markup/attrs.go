package markup

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Prefix всех атрибутов разметки виджета.
const Prefix = "dsta-"

// Element: источник атрибутов. *goquery.Selection подходит как есть.
type Element interface {
	Attr(name string) (string, bool)
}

type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindPhone
)

// Field описывает один атрибут: имя без префикса, тип и обязательность.
type Field[T any] struct {
	Name     string
	Kind     Kind
	Required bool
	Set      func(dst *T, v Value)
}

// Value: уже приведённое значение атрибута.
type Value struct {
	Text   string
	Number float64
}

type FieldError struct {
	Field  string
	Value  string
	Reason string
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s (%q)", e.Field, e.Reason, e.Value)
}

// DecodeError собирает все атрибуты, которые не удалось привести к нужному типу.
type DecodeError struct {
	Fields []FieldError
}

func (e *DecodeError) Error() string {
	return strings.Join(e.Messages(), "\n")
}

func (e *DecodeError) Messages() []string {
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, f.String())
	}
	return out
}

// decode читает поля из элемента. Если обязательного атрибута нет, found=false:
// так цикл по точкам понимает, что последовательность закончилась.
// Пустое значение считается отсутствующим.
func decode[T any](el Element, prefix string, fields []Field[T], dst *T) (found bool, problems []FieldError) {
	for _, f := range fields {
		raw, ok := el.Attr(Prefix + prefix + f.Name)
		if !ok || raw == "" {
			if f.Required {
				return false, nil
			}
			continue
		}

		v, err := coerce(f.Kind, raw)
		if err != nil {
			problems = append(problems, FieldError{Field: displayName(prefix, f.Name), Value: raw, Reason: err.Error()})
			continue
		}
		f.Set(dst, v)
	}
	return true, problems
}

func coerce(k Kind, raw string) (Value, error) {
	switch k {
	case KindNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return Value{}, errors.New("not a number")
		}
		return Value{Number: n, Text: raw}, nil
	case KindPhone:
		return Value{Text: NormalizePhone(raw)}, nil
	default:
		return Value{Text: raw}, nil
	}
}

// NormalizePhone оставляет только цифры и берёт из них последние 10.
func NormalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) > 10 {
		return digits[len(digits)-10:]
	}
	return digits
}

// displayName превращает "point3_" + "phone" в "point[3].phone".
func displayName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	idx := strings.TrimSuffix(strings.TrimPrefix(prefix, "point"), "_")
	return fmt.Sprintf("point[%s].%s", idx, name)
}
