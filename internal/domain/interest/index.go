// Package interest содержит чистые функции сравнения интересов (игр и жанров)
// для фильтрации кандидатов. Пакет не хранит состояния.
package interest

import (
	"sort"
	"strings"
)

// Set - множество нормализованных тегов интересов.
// Ключ - нормализованный тег, значение - исходное написание для отображения.
type Set map[string]string

// Normalize приводит тег к форме для сравнения: обрезает пробелы и
// сворачивает регистр. "  cs2 " и "CS2" считаются одним тегом.
func Normalize(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NewSet строит множество из списка тегов. Пустые теги отбрасываются,
// дубликаты схлопываются (первое написание побеждает).
func NewSet(tags []string) Set {
	s := make(Set, len(tags))
	for _, t := range tags {
		key := Normalize(t)
		if key == "" {
			continue
		}
		if _, ok := s[key]; !ok {
			s[key] = strings.TrimSpace(t)
		}
	}
	return s
}

// Len возвращает количество тегов.
func (s Set) Len() int {
	return len(s)
}

// Has проверяет наличие тега.
func (s Set) Has(tag string) bool {
	_, ok := s[Normalize(tag)]
	return ok
}

// Tags возвращает теги в исходном написании, отсортированные для стабильного вывода.
func (s Set) Tags() []string {
	out := make([]string, 0, len(s))
	for _, v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Overlaps возвращает true, если у двух наборов есть хотя бы один общий тег.
// Пустой набор ни с чем не пересекается.
func Overlaps(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	index := NewSet(large)
	for _, t := range small {
		if index.Has(t) {
			return true
		}
	}
	return false
}

// Shared возвращает общие теги в написании из a, в порядке a.
// Используется для подписи "Общие игры" в карточке кандидата.
func Shared(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	index := NewSet(b)
	seen := make(map[string]struct{}, len(a))
	var out []string
	for _, t := range a {
		key := Normalize(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if index.Has(t) {
			out = append(out, strings.TrimSpace(t))
		}
	}
	return out
}
